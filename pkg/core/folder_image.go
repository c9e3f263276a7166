package core

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/ignore"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

// ImageSignature is the fixed 8-byte signature prefixing every saved image
// file.
const ImageSignature = "smolimg "

// FolderImage is a directory's recorded state: its direct files and its
// non-empty subdirectories.
type FolderImage struct {
	Name    string
	Folders []*FolderImage
	Files   []*FileImage
	Size    uint64

	children map[string]interface{} // lazily built by Get
}

// NewFolderImage constructs a FolderImage from already-scanned children,
// computing its aggregate size.
func NewFolderImage(name string, folders []*FolderImage, files []*FileImage) *FolderImage {
	f := &FolderImage{Name: name, Folders: folders, Files: files}
	f.recalculateSize()
	return f
}

func (f *FolderImage) recalculateSize() {
	var total uint64
	for _, file := range f.Files {
		total += file.Size
	}
	for _, folder := range f.Folders {
		total += folder.Size
	}
	f.Size = total
}

// Scan walks the directory tree rooted at root, skipping paths the matcher
// ignores and any subdirectory that ends up transitively empty. The
// returned image's own Name is left as root's base name; callers building a
// target's top-level image conventionally blank it back out to "".
func Scan(root rootedpath.RootedPath, matcher *ignore.Matcher) (*FolderImage, error) {
	return scanDir(root, matcher)
}

func scanDir(dir rootedpath.RootedPath, matcher *ignore.Matcher) (*FolderImage, error) {
	entries, err := os.ReadDir(dir.Absolute())
	if err != nil {
		return nil, fmt.Errorf("unable to read directory %s: %w", dir.Absolute(), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	image := &FolderImage{Name: dir.Name()}
	for _, entry := range entries {
		childPath := dir.Child(entry.Name())
		relative := childPath.FromRoot()

		if entry.IsDir() {
			if matcher.Match(relative, true) {
				continue
			}
			child, err := scanDir(childPath, matcher)
			if err != nil {
				return nil, err
			}
			if len(child.Files) == 0 && len(child.Folders) == 0 {
				continue
			}
			image.Folders = append(image.Folders, child)
			image.Size += child.Size
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if matcher.Match(relative, false) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("unable to stat %s: %w", childPath.Absolute(), err)
		}
		file, err := FromStat(dir, info)
		if err != nil {
			return nil, err
		}
		image.Files = append(image.Files, file)
		image.Size += file.Size
	}
	return image, nil
}

// IterFiles returns every file in the tree, in depth-first order, matching
// the traversal order used when building the hash store.
func (f *FolderImage) IterFiles() []*FileImage {
	var out []*FileImage
	f.iterFiles(&out)
	return out
}

func (f *FolderImage) iterFiles(out *[]*FileImage) {
	*out = append(*out, f.Files...)
	for _, folder := range f.Folders {
		folder.iterFiles(out)
	}
}

// Get resolves a POSIX-slash relative path (as produced by
// rootedpath.RootedPath.FromRoot) to the FileImage or FolderImage living at
// that location, or nil if no such entry exists.
func (f *FolderImage) Get(relativePath string) interface{} {
	if relativePath == "" {
		return f
	}
	node := interface{}(f)
	for _, part := range splitRelative(relativePath) {
		folder, ok := node.(*FolderImage)
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

func (f *FolderImage) child(name string) interface{} {
	if f.children == nil {
		f.children = make(map[string]interface{}, len(f.Files)+len(f.Folders))
		for _, folder := range f.Folders {
			f.children[folder.Name] = folder
		}
		for _, file := range f.Files {
			f.children[file.Name] = file
		}
	}
	if v, ok := f.children[name]; ok {
		return v
	}
	return nil
}

// Save writes the image, prefixed with ImageSignature.
func (f *FolderImage) Save(w *frame.Writer) {
	w.WriteSignature(ImageSignature)
	f.save(w)
}

func (f *FolderImage) save(w *frame.Writer) {
	w.WriteString(f.Name)
	w.WriteUint64(f.Size)
	w.WriteUint32(uint32(len(f.Files)))
	for _, file := range f.Files {
		file.save(w)
	}
	w.WriteUint32(uint32(len(f.Folders)))
	for _, folder := range f.Folders {
		folder.save(w)
	}
}

// LoadImage reads a full image, checking the leading signature and rooting
// every contained path under root.
func LoadImage(r *frame.Reader, root rootedpath.RootedPath) (*FolderImage, error) {
	if err := r.ReadSignature(ImageSignature); err != nil {
		return nil, err
	}
	image := loadFolderImage(r, root)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return image, nil
}

func loadFolderImage(r *frame.Reader, dir rootedpath.RootedPath) *FolderImage {
	name := r.ReadString()
	dir = dir.Child(name)
	size := r.ReadUint64()

	filesCount := r.ReadUint32()
	files := make([]*FileImage, 0, filesCount)
	for i := uint32(0); i < filesCount; i++ {
		files = append(files, loadFileImage(r, dir))
	}

	foldersCount := r.ReadUint32()
	folders := make([]*FolderImage, 0, foldersCount)
	for i := uint32(0); i < foldersCount; i++ {
		folders = append(folders, loadFolderImage(r, dir))
	}

	return &FolderImage{Name: name, Files: files, Folders: folders, Size: size}
}

// Print writes a human-readable tree, mirroring the CLI's "read" command
// output; hideFiles suppresses individual file lines.
func (f *FolderImage) Print(w io.Writer, hideFiles bool) {
	fmt.Fprintf(w, "%s  %s\n", displayName(f.Name), humanize.Bytes(f.Size))
	f.printChildren(w, "", hideFiles)
}

func (f *FolderImage) printChildren(w io.Writer, prefix string, hideFiles bool) {
	count := len(f.Folders)
	if !hideFiles {
		count += len(f.Files)
	}
	index := 0
	for _, folder := range f.Folders {
		index++
		branch, next := treeBranch(prefix, index == count)
		fmt.Fprintf(w, "%s%s  %s\n", branch, folder.Name, humanize.Bytes(folder.Size))
		folder.printChildren(w, next, hideFiles)
	}
	if hideFiles {
		return
	}
	for _, file := range f.Files {
		index++
		branch, _ := treeBranch(prefix, index == count)
		fmt.Fprintf(w, "%s%s  %s\n", branch, file.Name, humanize.Bytes(file.Size))
	}
}

func treeBranch(prefix string, last bool) (branch string, nextPrefix string) {
	if last {
		return prefix + "└── ", prefix + "    "
	}
	return prefix + "├── ", prefix + "│   "
}

func displayName(name string) string {
	if name == "" {
		return "."
	}
	return name
}
