package diffengine

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

// DiffSignature is the fixed 8-byte signature prefixing every saved diff
// file.
const DiffSignature = "smoldiff"

// FolderDiff is a directory-level grouping of FileDiff entries and child
// FolderDiffs, with two accumulated size counters.
type FolderDiff struct {
	Name    string
	Folders []*FolderDiff
	Files   []*FileDiff

	// CopiedSize is the total size of new content that must be shipped to
	// recreate the target (sum of new.size over Added/Modified entries).
	CopiedSize int64
	// ChangeInSize is the signed net delta in target size.
	ChangeInSize int64

	children map[string]interface{}
}

func newFolderDiff(name string, folders []*FolderDiff, files []*FileDiff) *FolderDiff {
	d := &FolderDiff{Name: name, Folders: folders, Files: files}
	d.recalculateSize()
	return d
}

func (d *FolderDiff) recalculateSize() {
	var copiedSize, changeInSize int64
	for _, file := range d.Files {
		changeInSize += file.Size()
		if file.Status == StatusModified || file.Status == StatusAdded {
			copiedSize += int64(file.New.Size)
		}
	}
	for _, folder := range d.Folders {
		copiedSize += folder.CopiedSize
		changeInSize += folder.ChangeInSize
	}
	d.CopiedSize = copiedSize
	d.ChangeInSize = changeInSize
}

// HasChanges reports whether this subtree contains any non-unchanged entry.
func (d *FolderDiff) HasChanges() bool {
	for _, file := range d.Files {
		if file.HasChanges() {
			return true
		}
	}
	for _, folder := range d.Folders {
		if folder.HasChanges() {
			return true
		}
	}
	return false
}

// HasModified reports whether this subtree contains any Added or Modified
// entry (i.e. anything copy_modified_to would need to ship).
func (d *FolderDiff) HasModified() bool {
	for _, file := range d.Files {
		if file.IsModified() {
			return true
		}
	}
	for _, folder := range d.Folders {
		if folder.HasModified() {
			return true
		}
	}
	return false
}

// Statuses collects every non-unchanged status present in this subtree.
func (d *FolderDiff) Statuses() map[Status]bool {
	set := make(map[Status]bool)
	d.collectStatuses(set)
	return set
}

func (d *FolderDiff) collectStatuses(set map[Status]bool) {
	for _, file := range d.Files {
		if file.Status != StatusUnchanged {
			set[file.Status] = true
		}
	}
	for _, folder := range d.Folders {
		folder.collectStatuses(set)
	}
}

// RemoveUnchanged returns a new tree with every unchanged file entry and
// every folder that transitively contains only unchanged entries pruned.
func (d *FolderDiff) RemoveUnchanged() *FolderDiff {
	var files []*FileDiff
	for _, file := range d.Files {
		if file.HasChanges() {
			files = append(files, file)
		}
	}
	var folders []*FolderDiff
	for _, folder := range d.Folders {
		if folder.HasChanges() {
			folders = append(folders, folder.RemoveUnchanged())
		}
	}
	return newFolderDiff(d.Name, folders, files)
}

// Iter returns every FileDiff in the tree, depth-first.
func (d *FolderDiff) Iter() []*FileDiff {
	var out []*FileDiff
	d.iter(&out)
	return out
}

func (d *FolderDiff) iter(out *[]*FileDiff) {
	*out = append(*out, d.Files...)
	for _, folder := range d.Folders {
		folder.iter(out)
	}
}

// Get resolves a POSIX-slash relative path to the FileDiff or FolderDiff at
// that location, or nil if absent. Folders are keyed by Name, files by
// Name() (which prefers the new side).
func (d *FolderDiff) Get(relativePath string) interface{} {
	if relativePath == "" {
		return d
	}
	node := interface{}(d)
	for _, part := range splitRelative(relativePath) {
		folder, ok := node.(*FolderDiff)
		if !ok {
			return nil
		}
		node = folder.child(part)
		if node == nil {
			return nil
		}
	}
	return node
}

func splitRelative(relativePath string) []string {
	clean := path.Clean(relativePath)
	if clean == "." || clean == "" {
		return nil
	}
	var parts []string
	for clean != "." && clean != "/" {
		dir, base := path.Split(clean)
		parts = append([]string{base}, parts...)
		clean = path.Clean(dir)
	}
	return parts
}

func (d *FolderDiff) child(name string) interface{} {
	if d.children == nil {
		d.children = make(map[string]interface{}, len(d.Files)+len(d.Folders))
		for _, folder := range d.Folders {
			d.children[folder.Name] = folder
		}
		for _, file := range d.Files {
			d.children[file.Name()] = file
		}
	}
	if v, ok := d.children[name]; ok {
		return v
	}
	return nil
}

// ConnectCopiedByPath re-links every Copied entry's source (looked up by
// the relative path recorded at save time) back into root's tree, so that
// source.CopiedTo is populated from a loaded diff exactly as it would be
// right after Compare. Call this once after Load.
func (d *FolderDiff) ConnectCopiedByPath(root *FolderDiff) {
	for _, file := range d.Files {
		if file.Status == StatusCopied {
			if found, ok := root.Get(file.Old.Path.FromRoot()).(*FileDiff); ok && found != nil {
				file.SetCopied(found.Old)
			}
		}
	}
	for _, folder := range d.Folders {
		folder.ConnectCopiedByPath(root)
	}
}

// Compare builds a FolderDiff from a new and an old image snapshot of the
// same target, performing both the pair-by-name classification pass and
// the copy/move detection pass.
func Compare(newImage, oldImage *core.FolderImage) *FolderDiff {
	diff := compareRec(newImage, oldImage)

	deleted := make(map[core.EasyHash]*core.FileImage)
	diff.collectDeleted(deleted)
	diff.promoteCopies(deleted)
	diff.recalculateSizeRec()

	return diff
}

// collectDeleted gathers the copy/move sources by EasyHash: every Deleted
// entry's old file, and every unchanged entry's old file (so an unchanged
// file can be the source of a broadcast copy). A Deleted source takes
// precedence over an unchanged one with the same fingerprint.
func (d *FolderDiff) collectDeleted(deleted map[core.EasyHash]*core.FileImage) {
	for _, file := range d.Files {
		switch file.Status {
		case StatusDeleted:
			deleted[file.Old.EasyHash()] = file.Old
		case StatusUnchanged:
			if _, ok := deleted[file.Old.EasyHash()]; !ok {
				deleted[file.Old.EasyHash()] = file.Old
			}
		}
	}
	for _, folder := range d.Folders {
		folder.collectDeleted(deleted)
	}
}

func (d *FolderDiff) promoteCopies(deleted map[core.EasyHash]*core.FileImage) {
	for _, file := range d.Files {
		if file.Status == StatusAdded {
			if source, ok := deleted[file.New.EasyHash()]; ok {
				file.SetCopied(source)
			}
		}
	}
	for _, folder := range d.Folders {
		folder.promoteCopies(deleted)
	}
}

func (d *FolderDiff) recalculateSizeRec() {
	for _, folder := range d.Folders {
		folder.recalculateSizeRec()
	}
	d.recalculateSize()
}

func compareRec(newImage, oldImage *core.FolderImage) *FolderDiff {
	name := ""
	if newImage != nil {
		name = newImage.Name
	} else if oldImage != nil {
		name = oldImage.Name
	}
	if newImage == nil {
		newImage = core.NewFolderImage(name, nil, nil)
	}
	if oldImage == nil {
		oldImage = core.NewFolderImage(name, nil, nil)
	}

	type filePair struct{ new_, old *core.FileImage }
	fileSlots := make(map[string]*filePair)
	var fileOrder []string
	for _, file := range newImage.Files {
		fileSlots[file.Name] = &filePair{new_: file}
		fileOrder = append(fileOrder, file.Name)
	}
	for _, file := range oldImage.Files {
		if slot, ok := fileSlots[file.Name]; ok {
			slot.old = file
		} else {
			fileSlots[file.Name] = &filePair{old: file}
			fileOrder = append(fileOrder, file.Name)
		}
	}
	files := make([]*FileDiff, 0, len(fileOrder))
	for _, name := range fileOrder {
		slot := fileSlots[name]
		files = append(files, newFileDiff(slot.new_, slot.old))
	}

	type folderPair struct{ new_, old *core.FolderImage }
	folderSlots := make(map[string]*folderPair)
	var folderOrder []string
	for _, folder := range newImage.Folders {
		folderSlots[folder.Name] = &folderPair{new_: folder}
		folderOrder = append(folderOrder, folder.Name)
	}
	for _, folder := range oldImage.Folders {
		if slot, ok := folderSlots[folder.Name]; ok {
			slot.old = folder
		} else {
			folderSlots[folder.Name] = &folderPair{old: folder}
			folderOrder = append(folderOrder, folder.Name)
		}
	}
	folders := make([]*FolderDiff, 0, len(folderOrder))
	for _, name := range folderOrder {
		slot := folderSlots[name]
		folders = append(folders, compareRec(slot.new_, slot.old))
	}

	return newFolderDiff(name, folders, files)
}

// CopyFunc copies the content at sourceAbsolutePath into a destination
// identified by destRelativePath, applying modTime where the destination
// supports it.
type CopyFunc func(sourceAbsolutePath, destRelativePath string, modTime time.Time) error

// CopyModifiedTo walks the diff and invokes copyFn for every Added or
// Modified file, with destRelativePath prefixed by destPrefix.
func (d *FolderDiff) CopyModifiedTo(destPrefix string, copyFn CopyFunc) error {
	if !d.HasModified() {
		return nil
	}
	for _, file := range d.Files {
		if !file.IsModified() {
			continue
		}
		destRel := path.Join(destPrefix, file.Name())
		modTime := time.Unix(int64(file.New.Mod), 0)
		if err := copyFn(file.New.Path.Absolute(), destRel, modTime); err != nil {
			return err
		}
	}
	for _, folder := range d.Folders {
		if err := folder.CopyModifiedTo(path.Join(destPrefix, folder.Name), copyFn); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the diff, prefixed with DiffSignature.
func (d *FolderDiff) Save(w *frame.Writer) {
	w.WriteSignature(DiffSignature)
	d.save(w)
}

func (d *FolderDiff) save(w *frame.Writer) {
	w.WriteString(d.Name)
	w.WriteInt64(d.CopiedSize)
	w.WriteInt64(d.ChangeInSize)
	w.WriteUint32(uint32(len(d.Files)))
	for _, file := range d.Files {
		file.save(w)
	}
	w.WriteUint32(uint32(len(d.Folders)))
	for _, folder := range d.Folders {
		folder.save(w)
	}
}

// Load reads a full diff, checking the leading signature and rooting every
// contained path under root.
func Load(r *frame.Reader, root rootedpath.RootedPath) (*FolderDiff, error) {
	if err := r.ReadSignature(DiffSignature); err != nil {
		return nil, err
	}
	diff := loadFolderDiff(r, root, true)
	if err := r.Err(); err != nil {
		return nil, err
	}
	diff.ConnectCopiedByPath(diff)
	return diff, nil
}

func loadFolderDiff(r *frame.Reader, dir rootedpath.RootedPath, isRoot bool) *FolderDiff {
	name := r.ReadString()
	if isRoot {
		name = ""
	}
	dir = dir.Child(name)

	copiedSize := r.ReadInt64()
	changeInSize := r.ReadInt64()

	filesCount := r.ReadUint32()
	files := make([]*FileDiff, 0, filesCount)
	for i := uint32(0); i < filesCount; i++ {
		files = append(files, loadFileDiff(r, dir))
	}

	foldersCount := r.ReadUint32()
	folders := make([]*FolderDiff, 0, foldersCount)
	for i := uint32(0); i < foldersCount; i++ {
		folders = append(folders, loadFolderDiff(r, dir, false))
	}

	return &FolderDiff{
		Name:         name,
		Files:        files,
		Folders:      folders,
		CopiedSize:   copiedSize,
		ChangeInSize: changeInSize,
	}
}

// Print writes a human-readable tree of changes, mirroring the CLI's
// "status"/"compare"/"save" output. hide skips any folder whose entire
// status set is a subset of hide, and any file whose status is in hide.
func (d *FolderDiff) Print(w io.Writer, verbose bool, hide map[Status]bool, hideFiles bool) {
	fmt.Fprintf(w, "%s  %s  %s\n", displayName(d.Name), humanize.Bytes(uint64(max64(d.CopiedSize, 0))), signedSize(d.ChangeInSize))
	d.printChildren(w, "", verbose, hide, hideFiles)
}

func (d *FolderDiff) printChildren(w io.Writer, prefix string, verbose bool, hide map[Status]bool, hideFiles bool) {
	var folders []*FolderDiff
	for _, folder := range d.Folders {
		if hide != nil && isSubsetOfHide(folder.Statuses(), hide) {
			continue
		}
		if verbose || folder.HasChanges() {
			folders = append(folders, folder)
		}
	}
	var files []*FileDiff
	if !hideFiles {
		for _, file := range d.Files {
			if hide != nil && hide[file.Status] {
				continue
			}
			if file.HasChanges() {
				files = append(files, file)
			}
		}
	}

	count := len(folders) + len(files)
	index := 0
	for _, folder := range folders {
		index++
		branch, next := treeBranch(prefix, index == count)
		fmt.Fprint(w, branch)
		folder.printOneLine(w)
		folder.printChildren(w, next, verbose, hide, hideFiles)
	}
	for _, file := range files {
		index++
		branch, _ := treeBranch(prefix, index == count)
		fmt.Fprint(w, branch)
		fmt.Fprint(w, file.Name())
		size := file.Size()
		if size != 0 && file.Status != StatusCopied {
			fmt.Fprintf(w, "  %s", signedSize(size))
		}
		fmt.Fprintf(w, " %c\n", file.Status)
	}
}

func (d *FolderDiff) printOneLine(w io.Writer) {
	fmt.Fprintf(w, "%s  %s  %s\n", d.Name, humanize.Bytes(uint64(max64(d.CopiedSize, 0))), signedSize(d.ChangeInSize))
}

func isSubsetOfHide(statuses map[Status]bool, hide map[Status]bool) bool {
	for s := range statuses {
		if !hide[s] {
			return false
		}
	}
	return true
}

func signedSize(n int64) string {
	if n >= 0 {
		return "+" + humanize.Bytes(uint64(n))
	}
	return "-" + humanize.Bytes(uint64(-n))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func displayName(name string) string {
	if name == "" {
		return "."
	}
	return name
}

func treeBranch(prefix string, last bool) (branch string, nextPrefix string) {
	if last {
		return prefix + "└── ", prefix + "    "
	}
	return prefix + "├── ", prefix + "│   "
}
