package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/veracitylabs/veracity/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil && !errors.Is(err, cli.ErrNotAccepted) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
