package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/numscan/internal/domain"
)

func readRows(t *testing.T, b []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestWrite_WithStatus(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []domain.ReportRow{
		{Number: "+12345678901", Status: "Valid"},
		{Number: "+12345", Status: "Invalid"},
	}, true)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Contact Number", "Validation Status"},
		{"+12345678901", "Valid"},
		{"+12345", "Invalid"},
	}, readRows(t, buf.Bytes()))
}

func TestWrite_NumbersOnly(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []domain.ReportRow{{Number: "+1222"}, {Number: "+91888"}}, false)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Contact Number"},
		{"+1222"},
		{"+91888"},
	}, readRows(t, buf.Bytes()))
}

func TestWrite_EmptyStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, true))
	assert.Equal(t, [][]string{{"Contact Number", "Validation Status"}}, readRows(t, buf.Bytes()))
}

func TestWrite_LongDigitsStayText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []domain.ReportRow{{Number: "008613800138000"}}, false))

	rows := readRows(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, "008613800138000", rows[1][0])
}
