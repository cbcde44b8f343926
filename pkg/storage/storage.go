// Package storage archives accepted report uploads. Objects are
// content-addressed: the key of a document is the hex SHA-256 of its bytes,
// so re-uploading the same PDF writes the same object.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"

	archiveopts "github.com/kart-io/medreport/pkg/options/archive"
)

// Archive stores uploaded documents.
type Archive interface {
	// Put stores data under key and returns the location it was written to.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Name returns the backend identifier.
	Name() string
}

// New creates the archive selected by opts. A disabled archive is Noop.
func New(ctx context.Context, opts *archiveopts.Options) (Archive, error) {
	if opts == nil || !opts.Enabled {
		return Noop{}, nil
	}

	switch opts.Backend {
	case archiveopts.BackendLocal:
		return NewLocalArchive(opts.Dir)
	case archiveopts.BackendS3:
		return NewS3Archive(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown archive backend: %s", opts.Backend)
	}
}

// Key returns the content-addressed object key of a PDF, sharded by the first
// two hex digits: "ab/ab12...ef.pdf".
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	return path.Join(h[:2], h+".pdf")
}

// Noop discards everything.
type Noop struct{}

func (Noop) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

func (Noop) Name() string { return "noop" }
