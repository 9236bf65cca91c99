package aggregate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/numscan/internal/domain"
	"github.com/John-Robertt/numscan/internal/number"
)

func TestResultSet_DedupAcrossFrames(t *testing.T) {
	rs := New(ModeValidate)

	// 同一号码出现在两帧中：只保留一条。
	assert.True(t, rs.Add("+12345678901", number.Valid))
	assert.False(t, rs.Add("+12345678901", number.Valid))
	assert.True(t, rs.Add("+12345", number.Invalid))
	assert.False(t, rs.Add("+12345", number.Invalid))

	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []domain.ReportRow{
		{Number: "+12345678901", Status: "Valid"},
		{Number: "+12345", Status: "Invalid"},
	}, rs.Rows())
}

func TestResultSet_ValidateKeepsInsertionOrder(t *testing.T) {
	rs := New(ModeValidate)
	rs.Add("+919876543210", number.Valid)
	rs.Add("+99", number.Invalid)
	rs.Add("+12345678901", number.Valid)
	rs.Add("+11", number.Invalid)

	assert.Equal(t, []string{"+919876543210", "+12345678901"}, rs.Valid())
	assert.Equal(t, []string{"+99", "+11"}, rs.Invalid())
}

func TestResultSet_DisjointSets(t *testing.T) {
	rs := New(ModeValidate)
	rs.Add("+12345678901", number.Valid)
	// 即使调用方给出不同结论，也不会同时出现在两边。
	assert.False(t, rs.Add("+12345678901", number.Invalid))
	assert.Empty(t, rs.Invalid())
}

func TestResultSet_ExtractSorted(t *testing.T) {
	rs := New(ModeExtract)
	rs.Add("+91888", "")
	rs.Add("+1222", "")
	rs.Add("+91888", "")

	assert.Equal(t, []domain.ReportRow{{Number: "+1222"}, {Number: "+91888"}}, rs.Rows())
	assert.Empty(t, rs.Valid())
	assert.Empty(t, rs.Invalid())
}

func TestResultSet_ConcurrentAdd(t *testing.T) {
	rs := New(ModeValidate)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := fmt.Sprintf("+1%010d", i)
				rs.Add(n, number.Validate(n))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 200, rs.Len())
	assert.Len(t, rs.Valid(), 200)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("extract")
	require.NoError(t, err)
	assert.Equal(t, ModeExtract, m)

	_, err = ParseMode("both")
	assert.Error(t, err)
}
