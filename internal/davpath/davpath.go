// Package davpath maps caller-relative paths to server-absolute paths
// scoped under a configured root prefix, and back again for listings.
package davpath

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mapper converts between root-relative paths (what callers supply) and
// server-absolute paths (what the WebDAV backend expects). The root is
// fixed at construction.
//
// The mapper performs no sanitization of ".." segments in caller input;
// confinement to the root is advisory.
type Mapper struct {
	// root with any single trailing slash removed. Empty string when the
	// configured root is "/", so concatenation always yields "/<rel>".
	root string
}

// NewMapper creates a Mapper scoped under root. An empty root means "/".
// Paths are normalized to Unicode NFC on the way through — WebDAV servers
// disagree on normalization form and mixed forms break round-tripping.
func NewMapper(root string) *Mapper {
	if root == "" {
		root = "/"
	}

	root = norm.NFC.String(root)

	return &Mapper{root: strings.TrimSuffix(root, "/")}
}

// Root returns the configured root as a server-absolute directory path.
func (m *Mapper) Root() string {
	if m.root == "" {
		return "/"
	}

	return m.root
}

// Normalize converts a root-relative path to a server-absolute path:
// the slash-trimmed root, "/", then the path with a single leading
// slash removed.
func (m *Mapper) Normalize(rel string) string {
	rel = norm.NFC.String(rel)

	return m.root + "/" + strings.TrimPrefix(rel, "/")
}

// Denormalize converts a server-absolute path back to a root-relative one.
// Both sides are path.Clean'd first so "." and ".." segments in either
// input resolve before the relative path is computed; any leading slashes
// are stripped from the result.
func (m *Mapper) Denormalize(abs string) string {
	target := path.Clean("/" + norm.NFC.String(strings.TrimPrefix(abs, "/")))
	root := path.Clean(m.Root())

	return strings.TrimLeft(relativeTo(root, target), "/")
}

// relativeTo computes the path of target relative to base using segment
// resolution, not prefix stripping. Both inputs must be cleaned absolute
// paths. A target outside base yields ".." segments.
func relativeTo(base, target string) string {
	if base == target {
		return ""
	}

	baseSegs := splitSegments(base)
	targetSegs := splitSegments(target)

	common := 0
	for common < len(baseSegs) && common < len(targetSegs) && baseSegs[common] == targetSegs[common] {
		common++
	}

	segs := make([]string, 0, len(baseSegs)-common+len(targetSegs)-common)
	for range baseSegs[common:] {
		segs = append(segs, "..")
	}

	segs = append(segs, targetSegs[common:]...)

	return strings.Join(segs, "/")
}

// splitSegments splits a cleaned absolute path into its non-empty segments.
func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}

	return strings.Split(p, "/")
}
