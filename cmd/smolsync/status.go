package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/cmd"
	"github.com/TechnoStrife/smolsync/pkg/diffengine"
	"github.com/TechnoStrife/smolsync/pkg/hashstore"
)

func statusMain(command *cobra.Command, arguments []string) error {
	targets, err := loadTargets(rootConfiguration.settingsDir, arguments)
	if err != nil {
		return err
	}

	hide := parseHideStatuses(statusConfiguration.hide)

	for _, t := range targets {
		if err := t.scan(); err != nil {
			return err
		}
		printTargetHeader(t.name)
		if t.oldImage == nil {
			fmt.Println("No previously saved state")
			t.image.Print(os.Stdout, statusConfiguration.quiet)
			continue
		}
		diff := diffengine.Compare(t.image, t.oldImage)
		if statusConfiguration.verbose == 0 && !diff.HasChanges() {
			fmt.Println("No changes")
			continue
		}
		diff.Print(os.Stdout, statusConfiguration.verbose > 0, hide, statusConfiguration.quiet)
	}

	if statusConfiguration.save {
		printer := &cmd.StatusLinePrinter{}
		for _, t := range targets {
			progress := hashstore.ProgressCallback(cmd.StatusLineProgress(printer))
			if err := t.hashImage(rootConfiguration.settingsDir, progress); err != nil {
				return err
			}
			printer.Clear()
			if err := t.saveImage(rootConfiguration.settingsDir); err != nil {
				return err
			}
		}
	}
	return nil
}

var statusCommand = &cobra.Command{
	Use:          "status [target...]",
	Short:        "Scan targets and print their diff against the last saved image",
	Args:         cobra.ArbitraryArgs,
	RunE:         statusMain,
	SilenceUsage: true,
}

var statusConfiguration struct {
	help    bool
	verbose int
	quiet   bool
	hide    string
	save    bool
}

func init() {
	flags := statusCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&statusConfiguration.help, "help", "h", false, "Show help information")
	flags.CountVarP(&statusConfiguration.verbose, "verbose", "v", "Show the whole tree, not just changes")
	flags.BoolVarP(&statusConfiguration.quiet, "quiet", "q", false, "Don't print individual files")
	flags.StringVarP(&statusConfiguration.hide, "hide", "H", "", "Hide specific status letters (e.g. \"AD\")")
	flags.BoolVar(&statusConfiguration.save, "save", false, "Persist the current scan as the target's saved state")
}
