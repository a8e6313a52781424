//go:build !wasm

package store

import "fmt"

// New creates a Store. ":memory:" yields a MemoryStore, any other path a
// SQLite database.
func New(cfg Config) (Store, error) {
	switch cfg.Path {
	case "":
		return nil, fmt.Errorf("path is required")
	case ":memory:":
		return NewMemory(), nil
	default:
		return NewSQLite(cfg.Path)
	}
}
