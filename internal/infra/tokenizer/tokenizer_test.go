package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short words", text: "a b c d e", want: 5},
		{name: "long word", text: "internationalization", want: 5},
		{name: "cjk", text: "季度收入增长", want: 2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Estimate(tc.text))
		})
	}
}

func TestZeroTokenizerEstimates(t *testing.T) {
	t.Parallel()

	var tok Tokenizer
	require.False(t, tok.Exact())
	require.Equal(t, Estimate("quarterly revenue grew"), tok.Count("quarterly revenue grew"))
	require.Equal(t, 0, tok.Count(""))
}
