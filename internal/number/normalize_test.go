package number

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StripsSpacesAndHyphens(t *testing.T) {
	assert.Equal(t, "+919876543210", Normalize("+91 98765-43210"))
	assert.Equal(t, "+1(555)0109999", Normalize("+1 (555) 010-9999"))
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "12\t34", Normalize("12 -\t3-4"))
}

func TestNormalize_Idempotent(t *testing.T) {
	cases := []string{
		"",
		"+1234567890",
		"+91 98765-43210",
		"(020) 7946 0958",
		"- - -",
		"12\n34 56",
	}
	for _, x := range cases {
		once := Normalize(x)
		assert.Equal(t, once, Normalize(once), "输入 %q", x)
	}
}
