package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	releaseSession string
	releaseClosed  bool
)

var releaseCmd = &cobra.Command{
	Use:   "release <item>",
	Short: "Manually release a claim",
	Long: `Release a claim held by a session. With --closed the claim is deleted;
otherwise the item's failure count is incremented, which feeds
deprioritization.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)

	releaseCmd.Flags().StringVarP(&releaseSession, "session", "s", "", "session holding the claim (required)")
	releaseCmd.Flags().BoolVar(&releaseClosed, "closed", false, "the item was resolved and closed")
	_ = releaseCmd.MarkFlagRequired("session")
}

func runRelease(cmd *cobra.Command, args []string) error {
	itemID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid item number %q", args[0])
	}

	comp, err := build()
	if err != nil {
		return err
	}
	defer comp.close()

	if err := comp.locks.Release(cmd.Context(), itemID, releaseSession, releaseClosed); err != nil {
		return err
	}

	if releaseClosed {
		fmt.Fprintln(cmd.OutOrStdout(),
			successStyle.Render(fmt.Sprintf("released #%d (closed)", itemID)))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(),
			warnStyle.Render(fmt.Sprintf("released #%d (still open, failure recorded)", itemID)))
	}
	return nil
}
