// Package docid derives stable identifiers for source documents and their fragments.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const prefix = "doc:"

// ForSource returns a stable document ID for a source key (URL, path or display name).
// Local paths are cleaned first so "a/../b.pdf" and "b.pdf" share an ID.
func ForSource(key string) string {
	key = strings.TrimSpace(key)
	if !strings.Contains(key, "://") && key != "" {
		key = filepath.Clean(key)
	}
	hash := sha256.Sum256([]byte(key))
	return prefix + hex.EncodeToString(hash[:8])
}

// Fragment returns the ID of the fragment at sequence index seq of the document docID.
func Fragment(docID string, seq int) string {
	return fmt.Sprintf("%s#%d", docID, seq)
}

// IsDocumentID reports whether id was produced by ForSource.
func IsDocumentID(id string) bool {
	return strings.HasPrefix(id, prefix) && len(id) == len(prefix)+16
}
