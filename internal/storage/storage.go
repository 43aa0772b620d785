// Package storage keeps uploaded files (quote documents, signatures) in
// either a MinIO bucket or a local media directory.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var ErrBadKey = errors.New("storage: invalid key")

type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(ctx context.Context, key string) (string, error)
}

// Key joins parts into an object key, rejecting anything that would escape
// its prefix.
func Key(parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return "", ErrBadKey
		}
	}
	return path.Join(parts...), nil
}
