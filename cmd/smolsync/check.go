package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/pkg/diffengine"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/task"
)

func checkMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("check requires exactly one path: a diff file, a directory of diffs, or a zip archive")
	}

	dataRoot, names, cleanup, err := diffSource(arguments[0], nil)
	if err != nil {
		return err
	}
	defer cleanup()

	targets, err := loadTargets(rootConfiguration.settingsDir, names)
	if err != nil {
		return err
	}

	for _, t := range targets {
		if err := t.scan(); err != nil {
			return err
		}
		printTargetHeader(t.name)

		diff, err := loadDiffFor(t, dataRoot)
		if err != nil {
			return err
		}

		engine := &task.Engine{CurrentImage: t.image, DataRoot: t.dataDir(dataRoot)}
		plan := engine.Plan(diff)
		plan.Print(os.Stdout, checkConfiguration.verbose)
	}
	return nil
}

// loadDiffFor opens "<dataRoot>/<target>.diff" and loads it rooted at the
// target's live root, the shared first step of both check and apply.
func loadDiffFor(t *target, dataRoot string) (*diffengine.FolderDiff, error) {
	path := t.diffPath(dataRoot)
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open diff for target %s", t.name)
	}
	defer file.Close()

	diff, err := diffengine.Load(frame.NewReader(file), t.root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load diff for target %s", t.name)
	}
	return diff, nil
}

var checkCommand = &cobra.Command{
	Use:          "check <path>",
	Short:        "Report what applying a saved diff would do, without touching the destination",
	Args:         cobra.ExactArgs(1),
	RunE:         checkMain,
	SilenceUsage: true,
}

var checkConfiguration struct {
	help    bool
	verbose int
}

func init() {
	flags := checkCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&checkConfiguration.help, "help", "h", false, "Show help information")
	flags.CountVarP(&checkConfiguration.verbose, "verbose", "v", "Show lower-priority buckets as well")
}
