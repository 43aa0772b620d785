package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"tfsrentals/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRejectsTraversal(t *testing.T) {
	k, err := storage.Key("quotes", "q1", "quote.pdf")
	require.NoError(t, err)
	assert.Equal(t, "quotes/q1/quote.pdf", k)

	for _, bad := range [][]string{{"quotes", ".."}, {"quotes", "a/b"}, {"", "x"}, {`a\b`}} {
		_, err := storage.Key(bad...)
		assert.ErrorIs(t, err, storage.ErrBadKey, "%v", bad)
	}
}

func TestLocalStorePutOpenURL(t *testing.T) {
	s, err := storage.NewLocalStore(t.TempDir(), "http://api.test/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "quotes/q1/quote.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

	rc, err := s.Open(ctx, "quotes/q1/quote.pdf")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))

	u, err := s.URL(ctx, "quotes/q1/quote.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/media/quotes/q1/quote.pdf", u)

	_, err = s.URL(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrBadKey)
}
