package dap

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// warnedSourcePaths bounds the per-path warning dedup cache. A target
// that stops in a lot of unmapped library code should not grow adapter
// memory without bound.
const warnedSourcePaths = 512

// sourceResolver maps relative source paths reported by the target VM
// to absolute paths under the configured source roots. Roots are tried
// in order and the first existing file wins. Resolution failures are
// reported at most once per distinct path.
type sourceResolver struct {
	roots  []string
	log    *logrus.Entry
	warned *lru.Cache
}

func newSourceResolver(roots []string, log *logrus.Entry) *sourceResolver {
	warned, _ := lru.New(warnedSourcePaths)
	return &sourceResolver{roots: roots, log: log, warned: warned}
}

// resolve returns the absolute location of the given root-relative
// source path, or false when no configured root contains it. Not
// finding a path is not an error; the caller presents the frame
// without a navigable source.
func (r *sourceResolver) resolve(relativePath string) (string, bool) {
	rel := filepath.FromSlash(relativePath)
	for _, root := range r.roots {
		candidate := filepath.Join(root, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	if ok, _ := r.warned.ContainsOrAdd(relativePath, true); !ok {
		r.log.Warnf("Could not find %s in any source root", relativePath)
	}
	return "", false
}
