package cmd

import (
	"fmt"
	"os"

	"github.com/lyricgen/lyricgen/internal/dataset"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <dataset.jsonl>",
	Short: "Validate an exported dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return ExitError{Code: exitGeneral, Err: err}
	}
	defer f.Close()

	records, err := dataset.Decode(f)
	if err != nil {
		return ExitError{Code: exitGeneral, Err: fmt.Errorf("%s: %w", args[0], err)}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d records\n", successStyle.Render("✓"), args[0], len(records))
	return nil
}
