// Package task classifies each entry of a loaded diff into one of twelve
// mutually exclusive buckets by comparing it against the destination's
// current state and a staging area, then executes the buckets that require
// filesystem action.
package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/diffengine"
)

// Bucket identifies one of the twelve disjoint classifications a diff entry
// can fall into.
type Bucket int

const (
	Deleted Bucket = iota + 1
	AlreadyCopied
	Add
	Modify
	Delete
	CopyMove
	GroupSourceDelete
	ModifyDeleted
	AlreadyAdded
	Missing
	CopyGroupIsDeleted
	GroupCopy
)

// header is the human-readable name printed above each bucket's entries.
var header = map[Bucket]string{
	Deleted:            "Already deleted",
	AlreadyCopied:      "Already copied/moved",
	Add:                "Add",
	Modify:             "Modify",
	Delete:             "Delete",
	CopyMove:           "Copy/move",
	GroupSourceDelete:  "All copies present, source to be deleted",
	ModifyDeleted:      "Deleted files to be modified",
	AlreadyAdded:       "Existing files to be added",
	Missing:            "Missing files",
	CopyGroupIsDeleted: "All files are missing",
	GroupCopy:          "Source is missing but destinations can be copied from another",
}

// verbosity is the minimum --verbose level at which a bucket's entries are
// printed; apply executes every bucket regardless of verbosity.
var verbosity = map[Bucket]int{
	Deleted:            2,
	AlreadyCopied:      2,
	Add:                1,
	Modify:             1,
	Delete:             1,
	CopyMove:           1,
	GroupSourceDelete:  1,
	ModifyDeleted:      0,
	AlreadyAdded:       0,
	Missing:            0,
	CopyGroupIsDeleted: 0,
	GroupCopy:          0,
}

// order is the fixed guard-evaluation and execution order from the
// classification table; earlier buckets take priority when more than one
// guard could otherwise match (this resolves the overlap between CopyMove
// and GroupSourceDelete, and between GroupCopy and AlreadyCopied, where
// "all copies done" is a special case of "any copy done").
var order = []Bucket{
	Deleted, AlreadyCopied, Add, Modify, Delete, CopyMove, GroupSourceDelete,
	ModifyDeleted, AlreadyAdded, Missing, CopyGroupIsDeleted, GroupCopy,
}

// Engine classifies and runs diff entries against a destination.
type Engine struct {
	// CurrentImage is the destination tree's current scanned state.
	CurrentImage *core.FolderImage
	// DataRoot is the absolute path of this target's staging directory
	// (<data_root>/<target_name>).
	DataRoot string
	// Blind causes per-file errors to be recorded and skipped rather than
	// aborting the run.
	Blind bool
}

func (e *Engine) destinationImage(path string) *core.FileImage {
	if v, ok := e.CurrentImage.Get(path).(*core.FileImage); ok {
		return v
	}
	return nil
}

func (e *Engine) existsInDataRoot(file *core.FileImage) bool {
	if file == nil {
		return false
	}
	_, err := os.Stat(filepath.Join(e.DataRoot, file.Path.FromRoot()))
	return err == nil
}

func (e *Engine) copiesDone(copiedTo []*core.FileImage) (any_, all_ bool) {
	if len(copiedTo) == 0 {
		return false, true
	}
	all_ = true
	for _, dest := range copiedTo {
		if e.destinationImage(dest.Path.FromRoot()) != nil {
			any_ = true
		} else {
			all_ = false
		}
	}
	return any_, all_
}

// Classify determines the single bucket a diff entry belongs to. It panics
// if no bucket's guard matches, which would indicate a diff entry the
// classification table doesn't account for (a data integrity bug upstream,
// not a recoverable runtime condition).
func (e *Engine) Classify(file *diffengine.FileDiff) Bucket {
	switch file.Status {
	case diffengine.StatusDeleted:
		copiedToPresent := file.Old.CopiedTo != nil
		oldImgPresent := e.destinationImage(file.Old.Path.FromRoot()) != nil
		var any_, all_ bool
		if copiedToPresent {
			any_, all_ = e.copiesDone(file.Old.CopiedTo)
		}
		switch {
		case !copiedToPresent && !oldImgPresent:
			return Deleted
		case copiedToPresent && all_ && !oldImgPresent:
			return AlreadyCopied
		case !copiedToPresent && oldImgPresent:
			return Delete
		case copiedToPresent && any_ && oldImgPresent:
			return CopyMove
		case copiedToPresent && all_ && oldImgPresent:
			return GroupSourceDelete
		case copiedToPresent && !any_ && !oldImgPresent:
			return CopyGroupIsDeleted
		case copiedToPresent && any_ && !oldImgPresent:
			return GroupCopy
		}
	case diffengine.StatusAdded:
		exists := e.existsInDataRoot(file.New)
		newImgPresent := e.destinationImage(file.New.Path.FromRoot()) != nil
		switch {
		case exists && !newImgPresent:
			return Add
		case exists && newImgPresent:
			return AlreadyAdded
		case !exists:
			return Missing
		}
	case diffengine.StatusModified:
		exists := e.existsInDataRoot(file.New)
		newImgPresent := e.destinationImage(file.New.Path.FromRoot()) != nil
		switch {
		case exists && newImgPresent:
			return Modify
		case exists && !newImgPresent:
			return ModifyDeleted
		case !exists:
			return Missing
		}
	}
	panic(fmt.Sprintf("diff entry %q (status %c) matched no task bucket", file.Name(), file.Status))
}

// Entry pairs a diff file with its resolved bucket, preserving diff walk
// order within each bucket.
type Entry struct {
	File   *diffengine.FileDiff
	Bucket Bucket
}

// Plan groups every diff entry by bucket, in execution order.
type Plan struct {
	byBucket map[Bucket][]*diffengine.FileDiff
}

// Plan walks the diff and assigns each Added, Modified and Deleted entry to
// its bucket. Copied and unchanged entries get no bucket of their own: a
// copy is handled through its source's Deleted entry and CopiedTo list.
func (e *Engine) Plan(diff *diffengine.FolderDiff) *Plan {
	p := &Plan{byBucket: make(map[Bucket][]*diffengine.FileDiff)}
	for _, file := range diff.Iter() {
		if file.Status == diffengine.StatusCopied || file.Status == diffengine.StatusUnchanged {
			continue
		}
		bucket := e.Classify(file)
		p.byBucket[bucket] = append(p.byBucket[bucket], file)
	}
	return p
}

// FileError pairs a diff entry with the error encountered while running its
// task, accumulated only when the engine runs in blind mode.
type FileError struct {
	File *diffengine.FileDiff
	Err  error
}

// Print writes the plan's bucket lists whose verbosity is at or below the
// given level, matching the CLI's "check" output.
func (p *Plan) Print(w io.Writer, verbose int) {
	for _, bucket := range order {
		files := p.byBucket[bucket]
		if len(files) == 0 || verbosity[bucket] > verbose {
			continue
		}
		fmt.Fprintf(w, "%s:\n", header[bucket])
		for _, file := range files {
			fmt.Fprintf(w, "  %s %c\n", file.Name(), file.Status)
		}
	}
}

// Run executes every bucket's action in table order, returning the errors
// encountered for buckets that mutate the filesystem. When e.Blind is
// false, Run stops and returns the first error; otherwise it records every
// per-file error and continues. Run checks ctx between files and stops
// early (without starting the next file's action) once ctx is done,
// returning ctx.Err() — letting a caller wire in graceful interruption
// (e.g. on a termination signal) without corrupting a file mid-write.
func (e *Engine) Run(ctx context.Context, w io.Writer, plan *Plan, verbose int) ([]FileError, error) {
	var errs []FileError
	for _, bucket := range order {
		files := plan.byBucket[bucket]
		if len(files) == 0 {
			continue
		}
		doPrint := verbosity[bucket] <= verbose
		if doPrint {
			fmt.Fprintf(w, "%s:\n", header[bucket])
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return errs, err
			}
			if doPrint {
				fmt.Fprintf(w, "  %s %c\n", file.Name(), file.Status)
			}
			if err := e.runOne(bucket, file); err != nil {
				if !e.Blind {
					return errs, err
				}
				errs = append(errs, FileError{File: file, Err: err})
				fmt.Fprint(w, color.RedString("    error: %v\n", err))
			}
		}
	}
	return errs, nil
}

func (e *Engine) runOne(bucket Bucket, file *diffengine.FileDiff) error {
	switch bucket {
	case Add:
		return e.stageToTarget(file.New)
	case Modify:
		if newImg := e.destinationImage(file.New.Path.FromRoot()); newImg != nil && file.New.Mod <= newImg.Mod {
			return fmt.Errorf("refusing to modify %s: staged mod time %d is not newer than destination mod time %d",
				file.New.Path.FromRoot(), file.New.Mod, newImg.Mod)
		}
		return e.stageToTarget(file.New)
	case Delete:
		return deleteIfExists(file.Old.Path.Absolute())
	case GroupSourceDelete:
		return deleteIfExists(file.Old.Path.Absolute())
	case CopyMove:
		return e.copyMove(file)
	}
	return nil
}

func (e *Engine) stageToTarget(dest *core.FileImage) error {
	src := filepath.Join(e.DataRoot, dest.Path.FromRoot())
	return copyWithMetadata(src, dest.Path.Absolute())
}

func (e *Engine) copyMove(file *diffengine.FileDiff) error {
	destinations := file.Old.CopiedTo
	first := destinations[0]
	if err := os.MkdirAll(filepath.Dir(first.Path.Absolute()), 0o755); err != nil {
		return fmt.Errorf("unable to create destination directory for %s: %w", first.Name, err)
	}
	if err := os.Rename(file.Old.Path.Absolute(), first.Path.Absolute()); err != nil {
		return fmt.Errorf("unable to move %s to %s: %w", file.Old.Path.Absolute(), first.Path.Absolute(), err)
	}
	for _, dest := range destinations[1:] {
		if err := copyWithMetadata(first.Path.Absolute(), dest.Path.Absolute()); err != nil {
			return err
		}
	}
	return nil
}

func deleteIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to delete %s: %w", path, err)
	}
	return nil
}

func copyWithMetadata(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", dest, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("unable to copy %s to %s: %w", src, dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("unable to finalize %s: %w", dest, err)
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
