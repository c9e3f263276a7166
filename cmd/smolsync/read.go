package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/TechnoStrife/smolsync/pkg/core"
	"github.com/TechnoStrife/smolsync/pkg/diffengine"
	"github.com/TechnoStrife/smolsync/pkg/frame"
	"github.com/TechnoStrife/smolsync/pkg/rootedpath"
)

func readMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("read requires exactly one file")
	}
	path := arguments[0]

	if strings.HasSuffix(path, ".zip") {
		return readZip(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()
	return printFramed(file, path)
}

// readZip prints every ".image" and ".diff" entry found in a save --zip
// archive, one after another.
func readZip(path string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrapf(err, "unable to open archive %s", path)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name, ".image") && !strings.HasSuffix(entry.Name, ".diff") {
			continue
		}
		fmt.Printf("%s:\n", entry.Name)
		contents, err := entry.Open()
		if err != nil {
			return errors.Wrapf(err, "unable to open archive entry %s", entry.Name)
		}
		err = printFramed(contents, entry.Name)
		contents.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// printFramed peeks the leading signature of a framed binary file to decide
// whether it holds a saved image or a saved diff, then pretty-prints it. The
// result isn't tied to any live filesystem root, so paths are reported
// relative to an empty root.
func printFramed(r io.Reader, name string) error {
	signature := make([]byte, len(core.ImageSignature))
	if _, err := io.ReadFull(r, signature); err != nil {
		return errors.Wrapf(err, "unable to read signature of %s", name)
	}
	rest := io.MultiReader(bytes.NewReader(signature), r)
	root := rootedpath.NewRoot("")

	switch string(signature) {
	case core.ImageSignature:
		image, err := core.LoadImage(frame.NewReader(rest), root)
		if err != nil {
			return errors.Wrapf(err, "unable to load %s", name)
		}
		image.Print(os.Stdout, false)
	case diffengine.DiffSignature:
		diff, err := diffengine.Load(frame.NewReader(rest), root)
		if err != nil {
			return errors.Wrapf(err, "unable to load %s", name)
		}
		diff.Print(os.Stdout, true, nil, false)
	default:
		return fmt.Errorf("%s does not start with a recognized image or diff signature", name)
	}
	return nil
}

var readCommand = &cobra.Command{
	Use:          "read <file>",
	Short:        "Pretty-print a saved image, diff, or archive without needing a settings directory",
	Args:         cobra.ExactArgs(1),
	RunE:         readMain,
	SilenceUsage: true,
}

var readConfiguration struct {
	help bool
}

func init() {
	flags := readCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&readConfiguration.help, "help", "h", false, "Show help information")
}
