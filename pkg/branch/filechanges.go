package branch

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

// collectFileChanges walks a branch's session directory and records every
// regular file as Modified, skipping dotfiles and their subtrees. This is a
// known simplification: it does not distinguish added/modified/deleted
// against a pre-execution snapshot.
func collectFileChanges(sessionPath string) ([]domain.FileChange, error) {
	var changes []domain.FileChange

	err := filepath.WalkDir(sessionPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == sessionPath {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sessionPath, path)
		if err != nil {
			return err
		}
		changes = append(changes, domain.FileChange{Kind: domain.FileModified, Path: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, errors.ReadDirectoryFailed(err, sessionPath)
	}

	return changes, nil
}
