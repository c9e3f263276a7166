// Package hashstore implements a persistent cache mapping a file's
// (relative path, modification time, size) to its content hash, along with
// a reverse index from hash back to that key, so that unchanged files never
// need to be re-hashed.
package hashstore

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/frame"
)

// HashSignature is the fixed 8-byte signature prefixing every saved hash
// store file.
const HashSignature = "smolhash"

// Key identifies a file's cached hash entry. Two scans of the same
// unmodified file produce an identical Key, which is what lets the store
// skip re-hashing.
type Key struct {
	Path     string // POSIX-slash path relative to the target root
	Modified uint32
	Size     uint64
}

// Store is the in-memory hash cache, indexed both ways: by Key for
// lookahead during ApplyToImage, and by digest for the (currently unused by
// scanning itself, but exposed for future copy-detection reuse) reverse
// lookup.
type Store struct {
	files  map[Key][core.HashSize]byte
	hashes map[[core.HashSize]byte]Key
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		files:  make(map[Key][core.HashSize]byte),
		hashes: make(map[[core.HashSize]byte]Key),
	}
}

func keyFor(file *core.FileImage) Key {
	return Key{Path: file.Path.FromRoot(), Modified: file.Mod, Size: file.Size}
}

func toArray(hash []byte) [core.HashSize]byte {
	var arr [core.HashSize]byte
	copy(arr[:], hash)
	return arr
}

// AddFile records file's already-computed hash in the store, under both
// indices. file.Hash must be exactly core.HashSize bytes.
func (s *Store) AddFile(file *core.FileImage) {
	key := keyFor(file)
	hash := toArray(file.Hash)
	s.files[key] = hash
	s.hashes[hash] = key
}

// FromImage builds a Store from the hashes already recorded on image's files
// (used to seed a store for an image whose files are already hashed). It
// hashes nothing itself: files without a HashSize-byte Hash are skipped.
func FromImage(image *core.FolderImage) *Store {
	s := New()
	for _, file := range image.IterFiles() {
		if len(file.Hash) == core.HashSize {
			s.AddFile(file)
		}
	}
	return s
}

// ApplyToImage fills in the Hash field of every file in image whose
// (path, mod, size) key is already cached, and returns the files that were
// not found in the cache and therefore still need hashing.
func (s *Store) ApplyToImage(image *core.FolderImage) []*core.FileImage {
	var unhashed []*core.FileImage
	s.applyToImage(image, &unhashed)
	return unhashed
}

func (s *Store) applyToImage(image *core.FolderImage, unhashed *[]*core.FileImage) {
	for _, file := range image.Files {
		if hash, ok := s.files[keyFor(file)]; ok {
			stored := hash
			file.Hash = stored[:]
		} else {
			*unhashed = append(*unhashed, file)
		}
	}
	for _, folder := range image.Folders {
		s.applyToImage(folder, unhashed)
	}
}

// ProgressCallback receives a textual update for each file hashed and a
// final summary line. Passing nil disables progress reporting.
type ProgressCallback func(message string)

// CalculateHashes hashes every file in files (in order), recording each
// result in the store as it completes. If progress is non-nil, it receives
// one update per file and a final throughput summary.
func (s *Store) CalculateHashes(files []*core.FileImage, progress ProgressCallback) error {
	var totalSize uint64
	for i, file := range files {
		if progress != nil {
			progress(fmt.Sprintf("%d/%d %s", i+1, len(files), file.Path.FromRoot()))
		}
		if err := file.CalculateHash(); err != nil {
			return err
		}
		s.AddFile(file)
		totalSize += file.Size
	}
	if progress != nil && len(files) > 0 {
		progress(fmt.Sprintf("%d files   %s", len(files), humanize.Bytes(totalSize)))
	}
	return nil
}

// Save writes the store, prefixed with HashSignature.
func (s *Store) Save(w *frame.Writer) {
	w.WriteSignature(HashSignature)
	w.WriteUint32(uint32(len(s.files)))
	for key, hash := range s.files {
		w.WriteString(key.Path)
		w.WriteUint32(key.Modified)
		w.WriteUint64(key.Size)
		w.WriteBytes(hash[:])
	}
}

// Load reads a previously saved store.
func Load(r *frame.Reader) (*Store, error) {
	if err := r.ReadSignature(HashSignature); err != nil {
		return nil, err
	}
	s := New()
	count := r.ReadUint32()
	for i := uint32(0); i < count; i++ {
		key := Key{Path: r.ReadString(), Modified: r.ReadUint32(), Size: r.ReadUint64()}
		hash := toArray(r.ReadBytes(core.HashSize))
		s.files[key] = hash
		s.hashes[hash] = key
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
