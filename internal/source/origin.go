package source

import (
	"context"
	"errors"
)

var (
	// ErrUpstream wraps every failure to read from the origin.
	ErrUpstream = errors.New("upstream error")
	// ErrNotFound is returned by an origin for a missing path.
	ErrNotFound = errors.New("not found")
	// ErrNotDirectory is returned when a directory was expected.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotFile is returned when a file was expected.
	ErrNotFile = errors.New("not a file")
)

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "dir"
)

// DirEntry is one item of a directory listing.
type DirEntry struct {
	Name string
	Path string
	Type EntryType
}

// Origin is the remote store the content source reads through.
type Origin interface {
	// ListDirectory lists path, failing with ErrNotDirectory when path is a
	// file and ErrNotFound when it does not exist.
	ListDirectory(ctx context.Context, path string) ([]DirEntry, error)
	// GetFile returns the decoded file contents, failing with ErrNotFile
	// when path is a directory and ErrNotFound when it does not exist.
	GetFile(ctx context.Context, path string) ([]byte, error)
}
