// Package main provides the entry point for the supportkb CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/HlibHav/support-kb/cmd/supportkb/cmd"
	kberrors "github.com/HlibHav/support-kb/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)

		var coded *kberrors.Error
		if errors.As(err, &coded) && coded.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", coded.Suggestion)
		}
		os.Exit(1)
	}
}
