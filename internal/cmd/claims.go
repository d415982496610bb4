package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Inspect the claim ledger",
	Long:  `Commands for listing and cleaning up claims in the shared ledger.`,
}

var claimsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all claims",
	Long: `List every claim in the ledger: the owning session, claim age,
and accumulated failure count for items that were released unfinished.`,
	RunE: runClaimsList,
}

var claimsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Reclaim stale claims",
	Long: `Remove claims older than the configured TTL. Use this after a crashed
run left claims behind; normal runs sweep stale claims on their own.`,
	RunE: runClaimsCleanup,
}

func init() {
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsListCmd)
	claimsCmd.AddCommand(claimsCleanupCmd)
}

func runClaimsList(cmd *cobra.Command, args []string) error {
	comp, err := build()
	if err != nil {
		return err
	}
	defer comp.close()

	claims, err := comp.locks.ActiveClaims()
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no claims"))
		return nil
	}

	ids := make([]int, 0, len(claims))
	for id := range claims {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Claims"))
	for _, id := range ids {
		claim := claims[id]
		age := time.Since(claim.ClaimedAt).Round(time.Second)

		line := fmt.Sprintf("  #%-5d %-40s session=%s age=%s",
			claim.ItemID, truncate(claim.Title, 40), claim.SessionID, age)
		if claim.FailedAt != nil {
			line += "  " + failedStyle.Render(fmt.Sprintf("failures=%d", claim.FailureCount))
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func runClaimsCleanup(cmd *cobra.Command, args []string) error {
	comp, err := build()
	if err != nil {
		return err
	}
	defer comp.close()

	removed, err := comp.locks.Cleanup(cmd.Context())
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("no stale claims"))
		return nil
	}

	for _, id := range removed {
		fmt.Fprintln(cmd.OutOrStdout(),
			successStyle.Render(fmt.Sprintf("reclaimed #%d", id)))
	}
	return nil
}
