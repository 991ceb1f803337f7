package payments

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// MemoPrefix tags every on-chain memo this platform writes, so the
// reconciler can tell its own transactions apart from unrelated memos.
const MemoPrefix = "AC:"

const (
	memoIDPrefix    = "AC-"
	memoRandomLen   = 6
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	memoMaxParseLen = 128
)

var memoIDPattern = regexp.MustCompile(`^AC-\d{10,16}-[0-9A-Z]{6}$`)

// NewOrderMemo generates a fresh order identifier of the form
// AC-<epoch-millis>-<6 random base36 chars>. Collisions are unlikely but
// possible; callers rely on the store's unique constraint and regenerate
// on conflict.
func NewOrderMemo() (string, error) {
	suffix, err := randomBase36(memoRandomLen)
	if err != nil {
		return "", fmt.Errorf("generate memo suffix: %w", err)
	}
	return fmt.Sprintf("%s%d-%s", memoIDPrefix, time.Now().UnixMilli(), suffix), nil
}

func randomBase36(n int) (string, error) {
	max := big.NewInt(int64(len(base36Alphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36Alphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// MemoText renders the on-chain memo payload for an order identifier.
func MemoText(orderIDMemo string) string {
	return MemoPrefix + orderIDMemo
}

// ValidOrderMemo reports whether s has the shape of a platform order identifier.
func ValidOrderMemo(s string) bool {
	return memoIDPattern.MatchString(s)
}

// ParseMemo recovers an order identifier from raw on-chain memo text. It
// fails when the text does not carry the platform prefix or the identifier
// is malformed; the reconciler must not guess.
func ParseMemo(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > memoMaxParseLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "memo text too long")
	}
	if !strings.HasPrefix(trimmed, MemoPrefix) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "memo does not carry an order identifier")
	}
	id := strings.TrimPrefix(trimmed, MemoPrefix)
	if !ValidOrderMemo(id) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "malformed order identifier in memo")
	}
	return id, nil
}
