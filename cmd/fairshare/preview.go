package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/fairshare/internal/settlement"
)

func previewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <group-id>",
		Short: "Print a group's balances and settling transfers",
		Long:  `Computes the group's net balances and the transfers that would settle them. Nothing is written.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), a.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			preview, err := settlement.New(store).ComputePreview(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", settlement.Describe(err), err)
			}
			return printPreview(cmd.OutOrStdout(), preview)
		},
	}
}

func printPreview(out io.Writer, p *settlement.Preview) error {
	status := "open"
	if p.Group.IsFinalized {
		status = "finalized"
	}
	fmt.Fprintf(out, "%s (%s)\n\n", p.Group.Name, status)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "MEMBER\tPAID\tOWED\tNET\t")
	for _, b := range p.Balances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", b.Name, b.Paid.StringFixed(2), b.Owed.StringFixed(2), b.NetBalance.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if len(p.Transfers) == 0 {
		fmt.Fprintln(out, "Everyone is settled up.")
		return nil
	}
	for _, t := range p.Transfers {
		fmt.Fprintf(out, "%s pays %s %s\n", t.From, t.To, t.Amount.StringFixed(2))
	}
	return nil
}
