package main

import (
	"fmt"
	"os"

	"github.com/roach88/thunk/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version

	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
