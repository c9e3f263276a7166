package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/cmd"
	"github.com/TechnoStrife/smolsync/pkg/task"
)

func applyMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("apply requires exactly one path: a diff file, a directory of diffs, or a zip archive")
	}

	// Apply mutates the destination tree file by file, so a termination
	// signal is honored between files rather than left to kill the process
	// mid-write: the run stops cleanly after whatever file is in flight.
	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, cmd.TerminationSignals...)
	defer signal.Stop(terminationSignals)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case s := <-terminationSignals:
			cmd.Warning("received " + s.String() + ", finishing the current file and stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

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

		engine := &task.Engine{
			CurrentImage: t.image,
			DataRoot:     t.dataDir(dataRoot),
			Blind:        applyConfiguration.blind,
		}
		plan := engine.Plan(diff)
		fileErrors, err := engine.Run(ctx, os.Stdout, plan, applyConfiguration.verbose)
		if err != nil {
			return errors.Wrapf(err, "applying diff for target %s", t.name)
		}
		for _, fe := range fileErrors {
			cmd.Warning(fe.File.Name() + ": " + fe.Err.Error())
		}
	}
	return nil
}

var applyCommand = &cobra.Command{
	Use:   "apply <path>",
	Short: "Apply a saved diff to its target's live root",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(applyMain),
}

var applyConfiguration struct {
	help    bool
	verbose int
	blind   bool
}

func init() {
	flags := applyCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&applyConfiguration.help, "help", "h", false, "Show help information")
	flags.CountVarP(&applyConfiguration.verbose, "verbose", "v", "Print lower-priority buckets as they run")
	flags.BoolVarP(&applyConfiguration.blind, "blind", "b", false, "Keep going after a per-file error instead of aborting")
}
