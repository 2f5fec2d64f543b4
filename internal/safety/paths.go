package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gdeltkit/gdelt-go/internal/gdelterr"
)

// maxNameLen caps cache file names well under common filesystem limits.
const maxNameLen = 200

// CacheFilename derives a disk-safe file name from a cache key. Every
// byte outside [A-Za-z0-9._-] becomes an underscore; over-long names
// are truncated with a hash tail so distinct keys stay distinct.
func CacheFilename(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()

	if name == "" || name == "." || name == ".." {
		return hashTail(key)
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen-17] + "-" + hashTail(key)
	}
	return name
}

func hashTail(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// ResolveUnder joins name onto root and rejects any result that would
// land outside it.
func ResolveUnder(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", gdelterr.ErrUnsafePath)
	}
	cleanRoot := filepath.Clean(root)
	path := filepath.Clean(filepath.Join(cleanRoot, name))
	if path == cleanRoot || !strings.HasPrefix(path, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %q", gdelterr.ErrUnsafePath, name, cleanRoot)
	}
	return path, nil
}
