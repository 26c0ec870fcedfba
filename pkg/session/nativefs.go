// Package session implements the Session Manager contract the Branch
// Manager drives: isolated, independently committable or discardable working
// copies rooted at an arbitrary base path.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"

	"github.com/ardentforge/branchctl/pkg/errors"
)

// NativeManager is the filesystem-backed Manager. Each session is an
// independent directory under root; BeginSession populates it as a copy of
// basePath (a real git worktree when basePath is inside a repository, a
// plain recursive copy otherwise), CommitSession mirrors it back onto
// basePath, and RollbackSession discards it.
type NativeManager struct {
	mu       sync.Mutex
	root     string
	seq      uint64
	sessions map[string]*nativeSession
}

type nativeSession struct {
	basePath string
	path     string
	isGit    bool
}

// NewNativeManager constructs a Manager rooted at root, which it creates if
// missing. All session directories are allocated under root.
func NewNativeManager(root string) (*NativeManager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.CopyFailed(err, root)
	}
	return &NativeManager{root: root, sessions: make(map[string]*nativeSession)}, nil
}

// BeginSession materializes a new, independent working copy of basePath and
// returns its session id.
func (m *NativeManager) BeginSession(ctx context.Context, basePath string) (string, error) {
	if _, err := os.Stat(basePath); err != nil {
		return "", errors.BasePathNotFound(basePath)
	}

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("sess-%d", m.seq)
	path := filepath.Join(m.root, id)
	m.mu.Unlock()

	isGit := isGitRepo(basePath)

	var err error
	if isGit {
		err = createWorktree(ctx, basePath, path, id)
	} else {
		err = copyTree(basePath, path)
	}
	if err != nil {
		return "", errors.CopyFailed(err, path)
	}

	m.mu.Lock()
	m.sessions[id] = &nativeSession{basePath: basePath, path: path, isGit: isGit}
	m.mu.Unlock()

	return id, nil
}

// CommitSession mirrors a session's working copy back onto the base path it
// was opened from, then releases the session.
func (m *NativeManager) CommitSession(ctx context.Context, sessionID string) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return errors.SessionNotFound(sessionID)
	}

	if _, err := os.Stat(sess.path); err != nil {
		return errors.SessionDirectoryLost(sessionID)
	}

	if err := mirrorTree(sess.path, sess.basePath); err != nil {
		return errors.DiffFailed(err, sessionID)
	}

	return m.release(ctx, sessionID, sess)
}

// RollbackSession discards a session's working copy without touching its
// base path.
func (m *NativeManager) RollbackSession(ctx context.Context, sessionID string) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return errors.SessionNotFound(sessionID)
	}
	return m.release(ctx, sessionID, sess)
}

func (m *NativeManager) release(ctx context.Context, sessionID string, sess *nativeSession) error {
	var err error
	if sess.isGit {
		err = removeWorktree(ctx, sess.basePath, sess.path)
	} else {
		err = os.RemoveAll(sess.path)
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if err != nil {
		return errors.CleanupFailed(err, sessionID)
	}
	return nil
}

// SessionPath returns the working directory for a still-live session.
func (m *NativeManager) SessionPath(ctx context.Context, sessionID string) (string, bool) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return "", false
	}
	return sess.path, true
}

// ActiveSessionCount returns the number of sessions not yet committed or
// rolled back.
func (m *NativeManager) ActiveSessionCount(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *NativeManager) lookup(sessionID string) (*nativeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

func isGitRepo(path string) bool {
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// createWorktree adds a git worktree at path tracking a fresh branch off
// basePath's HEAD. go-git has no worktree-add support, so this shells out to
// the git CLI the same way the teacher's sandbox manager does.
func createWorktree(ctx context.Context, basePath, path, branchName string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "worktree", "add", "-b", branchName, path, "HEAD")
	cmd.Dir = basePath
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree add: %w\n%s", err, out)
	}
	return nil
}

func removeWorktree(ctx context.Context, basePath, path string) error {
	cmd := exec.CommandContext(ctx, "git", "worktree", "remove", "--force", path)
	cmd.Dir = basePath
	_, _ = cmd.CombinedOutput()
	return os.RemoveAll(path)
}

// copyTree recursively copies src into dst, which must not already exist.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target, info.Mode())
	})
}

// mirrorTree makes dst's tree match src's: every file in src is copied over
// dst, and every file in dst absent from src is removed.
func mirrorTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	present := make(map[string]bool)
	err := filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		present[rel] = true
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target, info.Mode())
	})
	if err != nil {
		return err
	}

	return filepath.Walk(dst, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(dst, p)
		if err != nil || rel == "." {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if present[rel] {
			return nil
		}
		if info.IsDir() {
			if err := os.RemoveAll(p); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		return os.Remove(p)
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
