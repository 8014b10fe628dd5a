// Package fsbrowse declares the read-only directory-browsing interface
// the kernel holds in its FS field. Only the interface lives
// here; an actual ext2 reader belongs to the filesystem driver, which
// this repo does not carry.
package fsbrowse

import "errors"

// ErrNotImplemented is returned by NullBrowser, the only Browser this
// repo ships.
var ErrNotImplemented = errors.New("fsbrowse: no filesystem driver wired")

// Entry is one directory entry: the inode fields that matter for a
// read-only listing, plus the name a directory block stores alongside
// the inode number.
type Entry struct {
	Name  string
	Inode uint32
	Size  uint32
	IsDir bool
}

// Browser is the read-only directory interface kernel.Kernel holds as FS.
// Kernel.Boot does not call it; nothing in this repo calls ReadDir.
type Browser interface {
	ReadDir(path string) ([]Entry, error)
}

// NullBrowser implements Browser by always reporting ErrNotImplemented.
// It exists so kernel wiring has a concrete, zero-value-safe Browser to
// plug in without pulling in a real ext2 reader.
type NullBrowser struct{}

func (NullBrowser) ReadDir(string) ([]Entry, error) { return nil, ErrNotImplemented }
