package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ana@example.com":  "a…@e….com",
		" Bob@Mail.Co.UK ": "b…@m….co.uk",
		"x@y.io":           "x@y.io",
		"":                 "",
		"abc":              "***",
		"no-at-sign":       "n…n",
		"@example.com":     "@…m",
	}
	for in, want := range cases {
		require.Equal(t, want, MaskEmail(in), in)
	}
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "***3333", MaskPhone("+5491122223333"))
	require.Equal(t, "****", MaskPhone("1234"))
	require.Equal(t, "", MaskPhone(""))
}
