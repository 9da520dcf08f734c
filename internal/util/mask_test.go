package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"alice@example.com":  "a…@e….com",
		"A@b.co":             "a@b.co",
		"":                   "",
		"no-at-sign":         "n…n",
		"ab":                 "***",
		" Bob@Example.ORG ":  "b…@e….org",
		"x@sub.domain.co.uk": "x@s….domain.co.uk",
	}
	for in, want := range cases {
		require.Equal(t, want, MaskEmail(in), "input %q", in)
	}
}
