package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

func TestNewOrderMemo_Format(t *testing.T) {
	memo, err := NewOrderMemo()
	require.NoError(t, err)
	assert.True(t, ValidOrderMemo(memo), "memo %q", memo)

	other, err := NewOrderMemo()
	require.NoError(t, err)
	assert.NotEqual(t, memo, other)
}

func TestParseMemo_RoundTrip(t *testing.T) {
	memo, err := NewOrderMemo()
	require.NoError(t, err)

	parsed, err := ParseMemo(MemoText(memo))
	require.NoError(t, err)
	assert.Equal(t, memo, parsed)
}

func TestParseMemo_Rejections(t *testing.T) {
	cases := map[string]string{
		"no prefix":      "AC-1700000000000-ABC123",
		"wrong prefix":   "XX:AC-1700000000000-ABC123",
		"malformed id":   "AC:not-an-order",
		"lowercase rand": "AC:AC-1700000000000-abc123",
		"empty":          "",
	}
	for name, text := range cases {
		_, err := ParseMemo(text)
		require.Error(t, err, name)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), name)
	}
}

func TestParseMemo_TrimsWhitespace(t *testing.T) {
	parsed, err := ParseMemo("  AC:AC-1700000000000-ABC123\n")
	require.NoError(t, err)
	assert.Equal(t, "AC-1700000000000-ABC123", parsed)
}
