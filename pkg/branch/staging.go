package branch

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

// applyMergedChanges copies Added/Modified files from the branch's session
// into the staging session and removes Deleted ones. It is only invoked when
// a merge produced no conflicts (spec §4.4 execute_merge step 6); committing
// the staging session to the parent is a separate, later step.
func applyMergedChanges(branchPath, stagingPath string, changes []domain.FileChange) error {
	for _, c := range changes {
		dst := filepath.Join(stagingPath, filepath.FromSlash(c.Path))

		if c.Kind == domain.FileDeleted {
			if err := os.RemoveAll(dst); err != nil && !os.IsNotExist(err) {
				return errors.MergeFailed("failed to remove " + c.Path + ": " + err.Error())
			}
			continue
		}

		src := filepath.Join(branchPath, filepath.FromSlash(c.Path))
		if err := copyFile(src, dst); err != nil {
			return errors.MergeFailed("failed to stage " + c.Path + ": " + err.Error())
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
