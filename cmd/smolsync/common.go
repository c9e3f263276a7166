package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/diffengine"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/hashstore"
	"github.com/TechnoStrife/smolsync/pkg/ignore"
	"github.com/TechnoStrife/smolsync/pkg/logging"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
	"github.com/TechnoStrife/smolsync/pkg/settings"
)

// rootLogger is the command line's top-level logger, a sublogger of the
// package-wide logging.RootLogger.
var rootLogger = logging.RootLogger.Sublogger("smolsync")

// target bundles a configured target with the runtime state accumulated
// while a command processes it: its root, compiled ignore predicate, a
// freshly taken scan, and whatever image was previously saved for it.
type target struct {
	name     string
	settings settings.Target
	root     rootedpath.RootedPath
	matcher  *ignore.Matcher

	image    *core.FolderImage
	oldImage *core.FolderImage
}

// imagePath returns where this target's saved image lives within a
// settings directory.
func (t *target) imagePath(settingsDir string) string {
	return filepath.Join(settingsDir, t.name+".image")
}

// diffName returns the file name (no directory) this target's diff is
// saved under.
func (t *target) diffName() string {
	return t.name + ".diff"
}

// diffPath returns where this target's diff lives within a data root
// (a directory of ".diff" files, or an extracted archive's temp directory).
func (t *target) diffPath(dataRoot string) string {
	return filepath.Join(dataRoot, t.diffName())
}

// dataDir returns this target's staging subdirectory within a data root
// used by save/apply: <data_root>/<target_name>.
func (t *target) dataDir(dataRoot string) string {
	return filepath.Join(dataRoot, t.name)
}

// scan populates t.image with a fresh scan of t.root, blanking the image's
// name back to "" as the top-level image convention requires.
func (t *target) scan() error {
	image, err := core.Scan(t.root, t.matcher)
	if err != nil {
		return errors.Wrapf(err, "unable to scan target %s", t.name)
	}
	image.Name = ""
	t.image = image
	return nil
}

// loadTargets reads the settings document from settingsDir, narrows it to
// the requested target names (all, if empty), and loads each target's
// previously saved image from that same settings directory when one
// exists.
func loadTargets(settingsDir string, names []string) ([]*target, error) {
	return loadTargetsFromImageDir(settingsDir, settingsDir, names)
}

// loadTargetsFromImageDir is loadTargets, but reads each target's previously
// saved image from imageDir instead of settingsDir (used by "compare",
// which diffs against an arbitrary directory of saved images).
func loadTargetsFromImageDir(settingsDir, imageDir string, names []string) ([]*target, error) {
	if settingsDir == "" {
		return nil, errors.New("no settings directory configured")
	}
	doc, err := settings.Load(settingsDir)
	if err != nil {
		return nil, err
	}
	selected, orderedNames, err := doc.Select(names)
	if err != nil {
		return nil, err
	}

	targets := make([]*target, 0, len(orderedNames))
	for _, name := range orderedNames {
		targetSettings := selected[name]
		matcher, err := targetSettings.CompileIgnore()
		if err != nil {
			return nil, errors.Wrapf(err, "target %s has an invalid ignore pattern", name)
		}
		t := &target{
			name:     name,
			settings: targetSettings,
			root:     rootedpath.NewRoot(targetSettings.Root),
			matcher:  matcher,
		}

		imageFile := t.imagePath(imageDir)
		if info, statErr := os.Stat(imageFile); statErr == nil && !info.IsDir() {
			if err := loadOldImage(t, imageFile); err != nil {
				return nil, err
			}
		}

		targets = append(targets, t)
	}
	return targets, nil
}

func loadOldImage(t *target, imageFile string) error {
	file, err := os.Open(imageFile)
	if err != nil {
		return errors.Wrapf(err, "unable to open saved image for target %s", t.name)
	}
	defer file.Close()

	image, err := core.LoadImage(frame.NewReader(file), t.root)
	if err != nil {
		return errors.Wrapf(err, "unable to load saved image for target %s", t.name)
	}
	t.oldImage = image
	return nil
}

// saveImage persists t.image as this target's saved state.
func (t *target) saveImage(settingsDir string) error {
	path := t.imagePath(settingsDir)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to create image file for target %s", t.name)
	}
	defer file.Close()

	w := frame.NewWriter(file)
	t.image.Save(w)
	return w.Err()
}

// hashPath returns this target's persisted hash-cache file, within a
// settings directory.
func (t *target) hashPath(settingsDir string) string {
	return filepath.Join(settingsDir, t.name+".hash")
}

// hashImage fills in content hashes for t.image, reusing cached hashes from
// this target's hash store where the (path, mod, size) key still matches
// and hashing everything else, reporting progress as it goes. The updated
// store is written back so that unchanged files never need rehashing on a
// later run.
func (t *target) hashImage(settingsDir string, progress hashstore.ProgressCallback) error {
	store := hashstore.New()
	hashFile := t.hashPath(settingsDir)
	if file, err := os.Open(hashFile); err == nil {
		loaded, err := hashstore.Load(frame.NewReader(file))
		file.Close()
		if err != nil {
			return errors.Wrapf(err, "unable to load hash cache for target %s", t.name)
		}
		store = loaded
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "unable to open hash cache for target %s", t.name)
	}

	unhashed := store.ApplyToImage(t.image)
	if err := store.CalculateHashes(unhashed, progress); err != nil {
		return errors.Wrapf(err, "unable to hash files for target %s", t.name)
	}

	file, err := os.OpenFile(hashFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "unable to write hash cache for target %s", t.name)
	}
	defer file.Close()
	w := frame.NewWriter(file)
	// Persist a store rebuilt strictly from t.image rather than the loaded
	// one: every file in t.image now carries a valid Hash, and rebuilding
	// drops keys for anything renamed or deleted since the cache was last
	// written instead of letting them accumulate forever.
	hashstore.FromImage(t.image).Save(w)
	return w.Err()
}

// printTargetHeader writes the conventional "Target <name>:" banner shared
// by every subcommand.
func printTargetHeader(name string) {
	fmt.Printf("Target %s:\n", name)
}

// unixTime converts the 32-bit whole-seconds modification time stamped on a
// FileImage back into a time.Time.
func unixTime(mod uint32) time.Time {
	return time.Unix(int64(mod), 0)
}

// diffSource resolves the single "path" argument that check/apply accept
// into a concrete data root directory and the set of target names to
// process, handling the three shapes spec.md allows: a directory of
// "<target>.diff" files (optionally alongside their staged payload
// directories), a single "<target>.diff" file, or a zip archive produced by
// "save --zip". Archives are extracted into a temporary directory since
// the task engine (and this command's own existence checks) operate on
// real filesystem paths; cleanup removes that temporary directory, a
// no-op for the non-archive cases.
func diffSource(path string, names []string) (dataRoot string, diffTargetNames []string, cleanup func(), err error) {
	cleanup = func() {}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return "", nil, cleanup, errors.Wrapf(statErr, "unable to access %s", path)
	}

	if !info.IsDir() && strings.HasSuffix(path, ".zip") {
		tempDir, err := extractZip(path)
		if err != nil {
			return "", nil, cleanup, err
		}
		cleanup = func() { os.RemoveAll(tempDir) }
		found, err := listDiffNames(tempDir)
		if err != nil {
			cleanup()
			return "", nil, func() {}, err
		}
		selected, err := filterDiffNames(found, names, path)
		if err != nil {
			cleanup()
			return "", nil, func() {}, err
		}
		return tempDir, selected, cleanup, nil
	}

	if !info.IsDir() && strings.HasSuffix(path, ".diff") {
		name := strings.TrimSuffix(filepath.Base(path), ".diff")
		return filepath.Dir(path), []string{name}, cleanup, nil
	}

	if !info.IsDir() {
		return "", nil, cleanup, fmt.Errorf("%s is not a directory, a .diff file, or a .zip archive", path)
	}

	found, err := listDiffNames(path)
	if err != nil {
		return "", nil, cleanup, err
	}
	selected, err := filterDiffNames(found, names, path)
	if err != nil {
		return "", nil, cleanup, err
	}
	return path, selected, cleanup, nil
}

func listDiffNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", dir)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".diff") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".diff"))
		}
	}
	return names, nil
}

func filterDiffNames(found, requested []string, path string) ([]string, error) {
	if len(requested) == 0 {
		return found, nil
	}
	available := make(map[string]bool, len(found))
	for _, name := range found {
		available[name] = true
	}
	var missing []string
	for _, name := range requested {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("targets %s were not found in %s", strings.Join(missing, ", "), path)
	}
	return requested, nil
}

// extractZip unpacks every entry of a zip archive into a fresh temporary
// directory, preserving each entry's recorded modification time.
func extractZip(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open archive %s", path)
	}
	defer reader.Close()

	tempDir, err := os.MkdirTemp("", "smolsync-")
	if err != nil {
		return "", errors.Wrap(err, "unable to create temporary extraction directory")
	}

	for _, entry := range reader.File {
		dest := filepath.Join(tempDir, filepath.FromSlash(entry.Name))
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				os.RemoveAll(tempDir)
				return "", errors.Wrapf(err, "unable to create %s", dest)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			os.RemoveAll(tempDir)
			return "", errors.Wrapf(err, "unable to create directory for %s", dest)
		}
		if err := extractZipEntry(entry, dest); err != nil {
			os.RemoveAll(tempDir)
			return "", err
		}
	}
	return tempDir, nil
}

func extractZipEntry(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, "unable to open archive entry %s", entry.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", dest)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return errors.Wrapf(err, "unable to extract %s", dest)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, entry.Modified, entry.Modified)
}

// parseHideStatuses turns a -H flag value like "AD" into the set diff
// printing uses to suppress matching entries. An empty string hides
// nothing.
func parseHideStatuses(letters string) map[diffengine.Status]bool {
	if letters == "" {
		return nil
	}
	hide := make(map[diffengine.Status]bool, len(letters))
	for _, r := range letters {
		hide[diffengine.Status(r)] = true
	}
	return hide
}
