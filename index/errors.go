package index

import "github.com/poiesic/profmatch/storage"

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = storage.ErrNotFound
