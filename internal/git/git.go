// Package git reads content from a local git repository at a fixed ref,
// without touching the working tree.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/workaholic-kv/workaholic/internal/source"
)

// ErrNotRepository is returned by Open for a directory outside any repository.
var ErrNotRepository = errors.New("not a git repository")

// Repository implements source.Origin over git plumbing commands.
type Repository struct {
	root string
	ref  string
}

var _ source.Origin = (*Repository)(nil)

// Open locates the repository containing dir. An empty dir means the
// current working directory and an empty ref means HEAD.
func Open(ctx context.Context, dir, ref string) (*Repository, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	if ref == "" {
		ref = "HEAD"
	}

	root, err := runGitCommand(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil || len(root) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotRepository)
	}
	return &Repository{root: strings.TrimSpace(string(root)), ref: ref}, nil
}

// Root returns the top-level directory of the working tree.
func (r *Repository) Root() string {
	return r.root
}

// CurrentBranch returns the checked out branch name.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	branch, err := runGitCommand(ctx, r.root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(branch)), nil
}

// ListDirectory lists the tree at dir.
func (r *Repository) ListDirectory(ctx context.Context, dir string) ([]source.DirEntry, error) {
	object := r.object(dir)
	kind, err := r.objectType(ctx, object)
	if err != nil {
		return nil, err
	}
	if kind != "tree" {
		return nil, fmt.Errorf("git: %s: %w", dir, source.ErrNotDirectory)
	}

	out, err := runGitCommand(ctx, r.root, "ls-tree", "-z", object)
	if err != nil {
		return nil, fmt.Errorf("git: ls-tree %s: %w", object, err)
	}

	var entries []source.DirEntry
	for _, record := range bytes.Split(out, []byte{0}) {
		if len(record) == 0 {
			continue
		}
		// <mode> SP <type> SP <object> TAB <name>
		info, name, ok := strings.Cut(string(record), "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(info)
		if len(fields) != 3 {
			continue
		}
		entryType := source.TypeFile
		switch fields[1] {
		case "tree":
			entryType = source.TypeDirectory
		case "blob":
		default:
			continue
		}
		entries = append(entries, source.DirEntry{Name: name, Path: path.Join(dir, name), Type: entryType})
	}
	return entries, nil
}

// GetFile returns the blob at name.
func (r *Repository) GetFile(ctx context.Context, name string) ([]byte, error) {
	object := r.object(name)
	kind, err := r.objectType(ctx, object)
	if err != nil {
		return nil, err
	}
	if kind != "blob" {
		return nil, fmt.Errorf("git: %s: %w", name, source.ErrNotFile)
	}

	data, err := runGitCommand(ctx, r.root, "cat-file", "blob", object)
	if err != nil {
		return nil, fmt.Errorf("git: cat-file %s: %w", object, err)
	}
	return data, nil
}

func (r *Repository) object(name string) string {
	return r.ref + ":" + strings.Trim(name, "/")
}

func (r *Repository) objectType(ctx context.Context, object string) (string, error) {
	out, err := runGitCommand(ctx, r.root, "cat-file", "-t", object)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("git: %s: %w", object, source.ErrNotFound)
	}
	return strings.TrimSpace(string(out)), nil
}

// runGitCommand executes git in dir and returns its standard output.
func runGitCommand(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return output, nil
}
