// Command smolsync captures directory trees as binary images, derives
// binary diffs between them with rename/copy detection, and applies those
// diffs to a destination tree.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/cmd"
	"github.com/TechnoStrife/smolsync/pkg/settings"
)

func rootMain(command *cobra.Command, arguments []string) error {
	return command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "smolsync",
	Short: "smolsync captures, diffs, and applies directory tree snapshots",
	// The root command only ever shows help; it takes no positional
	// arguments of its own (those belong to whichever subcommand matched).
	Args: cmd.DisallowArguments,
	RunE: rootMain,
}

var rootConfiguration struct {
	// help indicates whether or not help information should be shown.
	help bool
	// settingsDir overrides the default settings directory.
	settingsDir string
}

func init() {
	defaultDir, err := settings.DefaultDir()
	if err != nil {
		defaultDir = ""
	}

	flags := rootCommand.PersistentFlags()
	flags.SortFlags = false
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&rootConfiguration.settingsDir, "settings", "s", defaultDir, "Path to the settings directory")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		statusCommand,
		compareCommand,
		saveCommand,
		checkCommand,
		applyCommand,
		readCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
