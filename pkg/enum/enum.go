// Package enum discovers files to scan.
package enum

import (
	"context"

	"github.com/praetorian-inc/atomsel/pkg/types"
)

// Blob is the content of one file.
type Blob struct {
	Path    string
	Content []byte
	ID      types.BlobID
}

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source. The callback may be invoked
	// from several goroutines at once.
	Enumerate(ctx context.Context, callback func(Blob) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration. A regular file is yielded
	// as the only blob.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// SkipBinary skips files with a NUL byte in their first 8KB.
	SkipBinary bool

	// Readers is the number of files read in parallel (0 = runtime.NumCPU()).
	Readers int
}
