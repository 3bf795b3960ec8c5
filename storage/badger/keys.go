package badger

import (
	"github.com/poiesic/profmatch/core"
)

// Key prefix for index entries.
const indexEntryPrefix = "idxent"

// makeNamespacePrefix returns the prefix shared by every entry in namespace.
// The namespace is hashed so its length is fixed and cannot run into the key.
// Format: prefix:hash(namespace):
func makeNamespacePrefix(namespace string) []byte {
	digest := core.ContentHash(namespace)
	buf := make([]byte, 0, len(indexEntryPrefix)+len(digest)+2)
	buf = append(buf, indexEntryPrefix...)
	buf = append(buf, ':')
	buf = append(buf, digest...)
	return append(buf, ':')
}

// makeEntryKey generates the storage key for an entry.
// Format: prefix:hash(namespace):key
func makeEntryKey(namespace, key string) []byte {
	return append(makeNamespacePrefix(namespace), key...)
}
