// Package keygen derives blob storage keys from upload time and the original filename.
package keygen

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const DefaultPrefix = "unreal-envs"

type Generator struct {
	Prefix string
	Now    func() time.Time
}

func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{Prefix: strings.Trim(prefix, "/"), Now: time.Now}
}

// Key returns <prefix>/<unix millis>_<filename>. Two calls within the same
// millisecond for the same filename produce the same key.
func (g *Generator) Key(filename string) string {
	return path.Join(g.Prefix, fmt.Sprintf("%d_%s", g.Now().UnixMilli(), SanitizeFileName(filename)))
}

// SanitizeFileName makes a client supplied filename safe to use as a single key segment.
func SanitizeFileName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	if s == "" || s == "." {
		return "file"
	}
	return s
}
