//go:build wasm

package store

// New creates an in-memory store. cfg.Path is ignored since the SQLite driver
// has no js/wasm build.
func New(cfg Config) (Store, error) {
	return NewMemory(), nil
}
