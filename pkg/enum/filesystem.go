package enum

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/praetorian-inc/atomsel/pkg/types"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8 << 10

// FilesystemEnumerator yields the files under a directory, or a single file.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// Enumerate collects the eligible paths first, then reads them with up to
// Config.Readers goroutines. A .gitignore in any directory applies to the
// entries below it. .git directories are never entered.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback func(Blob) error) error {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return e.emit(ctx, e.config.Root, callback)
	}

	paths, err := e.collect(ctx)
	if err != nil {
		return err
	}
	return e.read(ctx, paths, callback)
}

func (e *FilesystemEnumerator) collect(ctx context.Context) ([]string, error) {
	root := filepath.Clean(e.config.Root)
	ignores := ignoreSet{root: root, byDir: map[string]*gitignore.GitIgnore{}}
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && (e.skipDir(d.Name()) || ignores.matches(path, true)) {
				return filepath.SkipDir
			}
			ignores.load(path)
			return nil
		}

		if !e.config.IncludeHidden && isHidden(d.Name()) {
			return nil
		}
		if ignores.matches(path, false) {
			return nil
		}

		info, err := e.fileInfo(path, d)
		if err != nil || info == nil {
			return err
		}
		if e.config.MaxFileSize > 0 && info.Size() > e.config.MaxFileSize {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func (e *FilesystemEnumerator) skipDir(name string) bool {
	return name == ".git" || (!e.config.IncludeHidden && isHidden(name))
}

// fileInfo returns the info of a regular file, following a symlink when
// configured. A nil info means the entry is not scanned.
func (e *FilesystemEnumerator) fileInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !e.config.FollowSymlinks {
			return nil, nil
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Dangling links and links to directories are skipped.
			return nil, nil
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

func (e *FilesystemEnumerator) read(ctx context.Context, paths []string, callback func(Blob) error) error {
	readers := e.config.Readers
	if readers < 1 {
		readers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return e.emit(gctx, path, callback)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Cancellation noticed by nobody still ends the enumeration with an error.
	return ctx.Err()
}

// emit reads one file and hands it to the callback.
func (e *FilesystemEnumerator) emit(ctx context.Context, path string, callback func(Blob) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if e.config.SkipBinary && isBinary(content) {
		return nil
	}

	return callback(Blob{
		Path:    path,
		Content: content,
		ID:      types.ComputeBlobID(content),
	})
}

// ignoreSet holds the .gitignore files found so far, keyed by directory.
type ignoreSet struct {
	root  string
	byDir map[string]*gitignore.GitIgnore
}

func (s ignoreSet) load(dir string) {
	gi, err := gitignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err == nil {
		s.byDir[dir] = gi
	}
}

// matches reports whether a .gitignore in one of path's ancestors, up to
// the root, excludes it.
func (s ignoreSet) matches(path string, isDir bool) bool {
	dir := filepath.Dir(path)
	for {
		if gi := s.byDir[dir]; gi != nil {
			rel, err := filepath.Rel(dir, path)
			if err == nil {
				rel = filepath.ToSlash(rel)
				if isDir {
					rel += "/"
				}
				if gi.MatchesPath(rel) {
					return true
				}
			}
		}
		if dir == s.root || len(dir) <= len(s.root) {
			return false
		}
		dir = filepath.Dir(dir)
	}
}

// isHidden reports whether name is a dotfile. "." and ".." are not hidden.
func isHidden(name string) bool {
	return name != "." && name != ".." && strings.HasPrefix(name, ".")
}

// isBinary reports whether the start of content contains a NUL byte.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) >= 0
}
