package main

import (
	"fmt"
	"os"

	"github.com/champster3243-build/Policy-Engine-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
