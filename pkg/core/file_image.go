// Package core implements the image model: a snapshot of a directory tree
// as FileImage/FolderImage nodes, together with scanning and the binary
// serialization of that snapshot.
package core

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"

	"github.com/mutagen-io/extstat"

	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

// HashSize is the fixed digest length stored alongside every file, SHA-1.
const HashSize = sha1.Size

// EasyHash is the cheap, stat-derived fingerprint used by the diff engine to
// propose copy/move candidates before any content hash is available.
type EasyHash struct {
	Created float64
	Mod     uint32
	Size    uint64
}

// FileImage is a single file's recorded state: its name, its location, and
// enough metadata to detect modification and propose copies without always
// needing a content hash.
type FileImage struct {
	Name    string
	Path    rootedpath.RootedPath
	Mod     uint32 // modification time, whole seconds since the Unix epoch
	Size    uint64
	Created float64 // change time (ctime), seconds since the Unix epoch
	Hash    []byte  // nil after a scan until hashed; loaded files: HashSize bytes, zero if unknown

	// CopiedTo records every file that the diff engine determined was
	// produced by copying or moving this file. Populated only on images
	// loaded as the "old" side of a diff.
	CopiedTo []*FileImage
}

// FromStat builds a FileImage for a regular file at path, given its parent
// directory's RootedPath and an os.FileInfo already obtained via Lstat/Stat.
// Created is taken from the platform's ctime/change-time via extstat, not
// from Mod, so the (Created, Mod, Size) EasyHash fingerprint stays capable
// of telling an untouched copy from a modified one even when both land in
// the same whole second.
func FromStat(parent rootedpath.RootedPath, info os.FileInfo) (*FileImage, error) {
	name := info.Name()
	path := parent.Child(name)

	stat, err := extstat.NewFromFileName(path.Absolute())
	if err != nil {
		return nil, fmt.Errorf("unable to query extended stat information for %s: %w", path.Absolute(), err)
	}

	return &FileImage{
		Name:    name,
		Path:    path,
		Mod:     uint32(info.ModTime().Unix()),
		Size:    uint64(info.Size()),
		Created: float64(stat.ChangeTime.UnixNano()) / 1e9,
	}, nil
}

// EasyHash returns the (created, mod, size) fingerprint used for cheap
// copy/move candidate matching.
func (f *FileImage) EasyHash() EasyHash {
	return EasyHash{Created: f.Created, Mod: f.Mod, Size: f.Size}
}

// Copy returns a shallow copy of f, sharing the same Hash slice but with a
// fresh, empty CopiedTo list. Used when promoting a deleted file into the
// "old" side of a Copied diff entry.
func (f *FileImage) Copy() *FileImage {
	cp := *f
	cp.CopiedTo = nil
	return &cp
}

// AddCopiedTo records that dst was produced by copying/moving f.
func (f *FileImage) AddCopiedTo(dst *FileImage) {
	f.CopiedTo = append(f.CopiedTo, dst)
}

// CalculateHash computes and stores f's SHA-1 content hash, reading the file
// at f.Path in 64 KiB chunks.
func (f *FileImage) CalculateHash() error {
	file, err := os.Open(f.Path.Absolute())
	if err != nil {
		return fmt.Errorf("unable to open %s for hashing: %w", f.Path.Absolute(), err)
	}
	defer file.Close()

	h := sha1.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return fmt.Errorf("unable to hash %s: %w", f.Path.Absolute(), err)
	}
	f.Hash = h.Sum(nil)
	return nil
}

// SaveFile writes this file's record: name, mod, size, created, and a fixed
// HashSize-byte digest (zero-filled if Hash hasn't been computed yet). It is
// exported for use by the diff engine, which serializes FileImages inline
// within its own format.
func (f *FileImage) SaveFile(w *frame.Writer) {
	f.save(w)
}

func (f *FileImage) save(w *frame.Writer) {
	w.WriteString(f.Name)
	w.WriteUint32(f.Mod)
	w.WriteUint64(f.Size)
	w.WriteFloat64(f.Created)
	hash := f.Hash
	if len(hash) != HashSize {
		hash = make([]byte, HashSize)
	}
	w.WriteBytes(hash)
}

// LoadFile reads a file record located under the given parent directory. It
// is exported for use by the diff engine.
func LoadFile(r *frame.Reader, parent rootedpath.RootedPath) *FileImage {
	return loadFileImage(r, parent)
}

// loadFileImage reads a file record located under the given parent
// directory.
func loadFileImage(r *frame.Reader, parent rootedpath.RootedPath) *FileImage {
	name := r.ReadString()
	mod := r.ReadUint32()
	size := r.ReadUint64()
	created := r.ReadFloat64()
	hash := r.ReadBytes(HashSize)
	return &FileImage{
		Name:    name,
		Path:    parent.Child(name),
		Mod:     mod,
		Size:    size,
		Created: created,
		Hash:    hash,
	}
}
