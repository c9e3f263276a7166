// Package diffengine compares two image snapshots into a FolderDiff tree,
// classifying every file by status and detecting copies/renames via a
// cheap stat-derived fingerprint, then supports serializing, pruning, and
// replaying that diff against a destination tree.
package diffengine

import (
	"bytes"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

// Status classifies how a single file changed between the old and new
// images.
type Status byte

const (
	StatusUnchanged Status = '-'
	StatusAdded     Status = 'A'
	StatusDeleted   Status = 'D'
	StatusModified  Status = 'M'
	StatusCopied    Status = 'C'
)

// FileDiff is one file's classification, carrying whichever of New/Old
// exist on each side.
type FileDiff struct {
	New    *core.FileImage
	Old    *core.FileImage
	Status Status
}

// newFileDiff classifies a pair of file images pulled from the same name
// slot in the new and old trees. Either side may be nil, but not both.
func newFileDiff(newFile, oldFile *core.FileImage) *FileDiff {
	d := &FileDiff{New: newFile, Old: oldFile}
	switch {
	case newFile == oldFile:
		d.Status = StatusUnchanged
	case newFile == nil:
		d.Status = StatusDeleted
	case oldFile == nil:
		d.Status = StatusAdded
	case newFile.Mod != oldFile.Mod || newFile.Size != oldFile.Size ||
		(len(newFile.Hash) > 0 && len(oldFile.Hash) > 0 && !bytes.Equal(newFile.Hash, oldFile.Hash)):
		d.Status = StatusModified
	default:
		d.Status = StatusUnchanged
	}
	return d
}

// SetCopied promotes an Added entry to Copied, recording source as the file
// it was copied/moved from and linking source.CopiedTo back to d.New.
func (d *FileDiff) SetCopied(source *core.FileImage) {
	d.Status = StatusCopied
	d.Old = source
	source.AddCopiedTo(d.New)
}

// Size returns the signed change in target size this entry represents: the
// new file's size (if any) minus the old file's size (if any), except for
// Copied entries where the old side isn't newly allocated and so doesn't
// count against the delta.
func (d *FileDiff) Size() int64 {
	var newSize, oldSize int64
	if d.New != nil {
		newSize = int64(d.New.Size)
	}
	if d.Old != nil && d.Status != StatusCopied {
		oldSize = int64(d.Old.Size)
	}
	return newSize - oldSize
}

// Name returns the entry's file name, preferring the new side.
func (d *FileDiff) Name() string {
	if d.New != nil {
		return d.New.Name
	}
	return d.Old.Name
}

// HasChanges reports whether this entry represents any change at all.
func (d *FileDiff) HasChanges() bool {
	return d.Status != StatusUnchanged
}

// IsModified reports whether this entry requires shipping new file content
// (Added or Modified).
func (d *FileDiff) IsModified() bool {
	return d.Status == StatusAdded || d.Status == StatusModified
}

// save writes this entry's status tag and payload.
func (d *FileDiff) save(w *frame.Writer) {
	w.WriteByte(byte(d.Status))
	switch d.Status {
	case StatusDeleted:
		d.Old.SaveFile(w)
	case StatusAdded:
		d.New.SaveFile(w)
	case StatusModified:
		d.New.SaveFile(w)
		d.Old.SaveFile(w)
	case StatusCopied:
		d.New.SaveFile(w)
		w.WriteString(d.Old.Path.FromRoot())
	case StatusUnchanged:
		d.New.SaveFile(w)
	}
}

// loadFileDiff reads one entry located under the given parent directory.
func loadFileDiff(r *frame.Reader, parent rootedpath.RootedPath) *FileDiff {
	status := Status(r.ReadByte())
	d := &FileDiff{Status: status}
	switch status {
	case StatusDeleted:
		d.Old = core.LoadFile(r, parent)
	case StatusAdded:
		d.New = core.LoadFile(r, parent)
	case StatusModified:
		d.New = core.LoadFile(r, parent)
		d.Old = core.LoadFile(r, parent)
	case StatusCopied:
		d.New = core.LoadFile(r, parent)
		oldRelativePath := r.ReadString()
		d.Old = d.New.Copy()
		d.Old.Path = parent.JoinFromRoot(oldRelativePath)
	case StatusUnchanged:
		d.New = core.LoadFile(r, parent)
		d.Old = d.New
	}
	return d
}
