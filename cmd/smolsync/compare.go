package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/pkg/diffengine"
)

func compareMain(command *cobra.Command, arguments []string) error {
	if len(arguments) < 1 {
		return errors.New("compare requires a path: the directory holding saved images")
	}
	imageDir := arguments[0]
	names := arguments[1:]

	targets, err := loadTargetsFromImageDir(rootConfiguration.settingsDir, imageDir, names)
	if err != nil {
		return err
	}

	hide := parseHideStatuses(compareConfiguration.hide)

	for _, t := range targets {
		if err := t.scan(); err != nil {
			return err
		}
		printTargetHeader(t.name)
		if t.oldImage == nil {
			fmt.Println("No saved state in", imageDir)
			t.image.Print(os.Stdout, compareConfiguration.quiet)
			continue
		}

		diff := diffengine.Compare(t.image, t.oldImage)
		if compareConfiguration.copyTime {
			if err := applyCopyTime(diff); err != nil {
				return err
			}
		}
		if compareConfiguration.verbose == 0 && !diff.HasChanges() {
			fmt.Println("No changes")
			continue
		}
		diff.Print(os.Stdout, compareConfiguration.verbose > 0, hide, compareConfiguration.quiet)
	}
	return nil
}

// applyCopyTime walks every Modified entry and, where the stored image
// already carries a content hash for the old side, hashes the live file and
// reconciles its modification time onto the old value when the content
// actually matches — letting a future compare see the file as unchanged
// even though some operation (e.g. a backup restore) touched its mtime.
func applyCopyTime(diff *diffengine.FolderDiff) error {
	for _, file := range diff.Iter() {
		if file.Status != diffengine.StatusModified {
			continue
		}
		if len(file.Old.Hash) == 0 {
			continue
		}
		if err := file.New.CalculateHash(); err != nil {
			return err
		}
		if string(file.New.Hash) != string(file.Old.Hash) {
			continue
		}
		modTime := unixTime(file.Old.Mod)
		if err := os.Chtimes(file.New.Path.Absolute(), modTime, modTime); err != nil {
			return errors.Wrapf(err, "unable to copy modification time onto %s", file.New.Path.Absolute())
		}
	}
	return nil
}

var compareCommand = &cobra.Command{
	Use:          "compare <dir> [target...]",
	Short:        "Scan targets and print their diff against images saved in <dir>",
	Args:         cobra.MinimumNArgs(1),
	RunE:         compareMain,
	SilenceUsage: true,
}

var compareConfiguration struct {
	help     bool
	verbose  int
	quiet    bool
	hide     string
	copyTime bool
}

func init() {
	flags := compareCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&compareConfiguration.help, "help", "h", false, "Show help information")
	flags.CountVarP(&compareConfiguration.verbose, "verbose", "v", "Show the whole tree, not just changes")
	flags.BoolVarP(&compareConfiguration.quiet, "quiet", "q", false, "Don't print individual files")
	flags.StringVarP(&compareConfiguration.hide, "hide", "H", "", "Hide specific status letters (e.g. \"AD\")")
	flags.BoolVar(&compareConfiguration.copyTime, "copy-time", false,
		"Copy modification time from the saved image onto files with matching content hashes")
}
