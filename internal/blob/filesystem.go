package blob

import (
	"panelcore/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at root. The
// interface return keeps call sites off the concrete driver type.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
