package main

import (
	"fmt"
	"os"

	"github.com/aristath/autodev/internal/cli"
)

var Version = "dev"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
