package main

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/cmd"
	"github.com/TechnoStrife/smolsync/pkg/archive"
	"github.com/TechnoStrife/smolsync/pkg/diffengine"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/hashstore"
)

func saveMain(command *cobra.Command, arguments []string) error {
	if len(arguments) < 1 {
		return errors.New("save requires a path: where to write the diff")
	}
	destPath := arguments[0]
	names := arguments[1:]

	baseDir := rootConfiguration.settingsDir
	if saveConfiguration.base != "" {
		baseDir = saveConfiguration.base
	}

	targets, err := loadTargetsFromImageDir(rootConfiguration.settingsDir, baseDir, names)
	if err != nil {
		return err
	}

	var zipFile *os.File
	var zw *zip.Writer
	if saveConfiguration.zip {
		zipPath, err := resolveZipPath(destPath)
		if err != nil {
			return err
		}
		zipFile, err = os.Create(zipPath)
		if err != nil {
			return errors.Wrapf(err, "unable to create archive %s", zipPath)
		}
		defer zipFile.Close()
		zw = zip.NewWriter(zipFile)
		defer zw.Close()
	}

	printer := &cmd.StatusLinePrinter{}
	progress := hashstore.ProgressCallback(cmd.StatusLineProgress(printer))

	for _, t := range targets {
		if err := t.scan(); err != nil {
			return err
		}
		printTargetHeader(t.name)
		if t.oldImage == nil {
			fmt.Println("No previously saved state")
			continue
		}

		diff := diffengine.Compare(t.image, t.oldImage)
		if saveConfiguration.verbose == 0 && !diff.HasChanges() {
			fmt.Println("No changes")
			continue
		}
		diff.Print(os.Stdout, saveConfiguration.verbose > 0, nil, saveConfiguration.quiet)
		if !diff.HasChanges() {
			continue
		}

		diff = diff.RemoveUnchanged()

		if err := t.hashImage(rootConfiguration.settingsDir, progress); err != nil {
			return err
		}
		printer.Clear()

		if saveConfiguration.zip {
			entryWriter, err := zw.Create(t.diffName())
			if err != nil {
				return errors.Wrapf(err, "unable to create archive entry for target %s", t.name)
			}
			w := frame.NewWriter(entryWriter)
			diff.Save(w)
			if err := w.Err(); err != nil {
				return err
			}
			destination := archive.NewZipWriter(zw)
			if err := diff.CopyModifiedTo(t.name, archive.CopyFunc(destination)); err != nil {
				return err
			}
		} else {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return errors.Wrapf(err, "unable to create %s", destPath)
			}
			diffFile, err := os.OpenFile(filepath.Join(destPath, t.diffName()), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return errors.Wrapf(err, "unable to create diff file for target %s", t.name)
			}
			w := frame.NewWriter(diffFile)
			diff.Save(w)
			closeErr := diffFile.Close()
			if err := w.Err(); err != nil {
				return err
			}
			if closeErr != nil {
				return errors.Wrapf(closeErr, "unable to finalize diff file for target %s", t.name)
			}
			destination := archive.Directory{Root: t.dataDir(destPath)}
			if err := diff.CopyModifiedTo("", archive.CopyFunc(destination)); err != nil {
				return err
			}
		}

		if err := t.saveImage(rootConfiguration.settingsDir); err != nil {
			return err
		}
	}

	return nil
}

// resolveZipPath applies the save command's rules for where the zip
// archive ends up: a directory gets the default dated file name appended;
// any other path, existing or not, is used as given if it ends in ".zip"
// and is an error otherwise; a stat failure other than "not exist" is
// returned as is.
func resolveZipPath(destPath string) (string, error) {
	info, err := os.Stat(destPath)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(destPath, archive.DefaultArchiveName(time.Now())), nil
	case err != nil && os.IsNotExist(err), err == nil && !info.IsDir():
		if !strings.HasSuffix(destPath, ".zip") {
			return "", fmt.Errorf("file %s does not end in \".zip\". If you meant a directory, create it first", destPath)
		}
		return destPath, nil
	default:
		return "", err
	}
}

var saveCommand = &cobra.Command{
	Use:          "save <dest> [target...]",
	Short:        "Diff targets against their last saved image and persist the diff plus payload",
	Args:         cobra.MinimumNArgs(1),
	RunE:         saveMain,
	SilenceUsage: true,
}

var saveConfiguration struct {
	help    bool
	verbose int
	quiet   bool
	zip     bool
	base    string
}

func init() {
	flags := saveCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&saveConfiguration.help, "help", "h", false, "Show help information")
	flags.CountVarP(&saveConfiguration.verbose, "verbose", "v", "Show the whole tree, not just changes")
	flags.BoolVarP(&saveConfiguration.quiet, "quiet", "q", false, "Don't print individual files")
	flags.BoolVarP(&saveConfiguration.zip, "zip", "z", false, "Save into a zip archive instead of a directory")
	flags.StringVar(&saveConfiguration.base, "base", "", "Base image directory to compare against (default: the settings directory)")
}
