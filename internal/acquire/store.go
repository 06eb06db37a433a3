package acquire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const maxStoredName = 80

// StoredName is the on-disk name of the document with the given ordinal:
// a zero-padded ordinal prefix and the sanitized URL basename.
func StoredName(ordinal int, rawURL string) string {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	if len(name) > maxStoredName {
		name = name[len(name)-maxStoredName:]
	}
	return fmt.Sprintf("%03d_%s", ordinal, name)
}

// store writes body under dir with exclusive create and returns the path and
// the hex SHA-256 of the bytes.
func store(dir, name string, body []byte) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir documents: %w", err)
	}
	p := filepath.Join(dir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", "", fmt.Errorf("close %s: %w", name, err)
	}
	sum := sha256.Sum256(body)
	return p, hex.EncodeToString(sum[:]), nil
}
