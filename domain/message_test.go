package domain

import (
	"chat-relay/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		maxLength int
		expected  string
		err       error
	}{
		{name: "trimmed", raw: "  hi \n", maxLength: 10, expected: "hi"},
		{name: "inner spaces kept", raw: "a  b", maxLength: 10, expected: "a  b"},
		{name: "limit counts runes", raw: strings.Repeat("ü", 5), maxLength: 5, expected: strings.Repeat("ü", 5)},
		{name: "no limit", raw: strings.Repeat("a", 5000), maxLength: 0, expected: strings.Repeat("a", 5000)},
		{name: "empty", raw: "", maxLength: 10, err: errors.ErrEmptyMessage},
		{name: "whitespace only", raw: " \t\n", maxLength: 10, err: errors.ErrEmptyMessage},
		{name: "too long", raw: "abcdef", maxLength: 5, err: errors.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := NormalizeText(tt.raw, tt.maxLength)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, text)
		})
	}
}
