package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Exit codes returned through ExitError.
const (
	exitGeneral  = 1
	exitPartial  = 2
	exitConfig   = 3
	exitDelivery = 4
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lyricgen",
	Short: "lyricgen - fan out completions and curate a fine-tuning dataset",
	Long: `lyricgen sends one prompt to a completion API many times in parallel, each call with
its own sampling temperature, and lets you pick and edit the results into a JSONL
fine-tuning dataset.

Key commands:
  lyricgen init        Initialize a project (lyricgen.yml)
  lyricgen generate    Run a batch, curate the results, export and deliver
  lyricgen serve       Serve the same workflow over HTTP
  lyricgen check       Validate an exported dataset`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: lyricgen.yml/lyricgen.yaml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitGeneral
		var exitErr ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
			err = exitErr.Err
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e ExitError) Unwrap() error {
	return e.Err
}
