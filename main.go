package main

import (
	"fmt"
	"os"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
