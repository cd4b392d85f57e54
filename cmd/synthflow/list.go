package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dudk/synthflow/patch"
)

type listCommand struct{}

func (cmd *listCommand) Name() string {
	return "list"
}

func (cmd *listCommand) Help() string {
	return "Show the list of available node types"
}

func (cmd *listCommand) Register(*flag.FlagSet) {}

func (cmd *listCommand) Run(out io.Writer) error {
	fmt.Fprintln(out, "Available node types:")
	for _, typ := range patch.Types() {
		fmt.Fprintf(out, "\t%s\n", typ)
	}
	return nil
}
