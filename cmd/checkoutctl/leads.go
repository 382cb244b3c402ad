package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kkkkikiki/checkout/internal/model"
)

func (a *app) leadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect purchase leads",
	}
	cmd.AddCommand(a.leadsListCmd())
	return cmd
}

func (a *app) leadsListCmd() *cobra.Command {
	var (
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			leads, err := store.ListLeads(cmd.Context())
			if err != nil {
				return err
			}
			counts := model.CountLeads(leads)
			if status != "" {
				filtered := leads[:0]
				for _, l := range leads {
					if string(l.Status) == status {
						filtered = append(filtered, l)
					}
				}
				leads = filtered
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(leads)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REFERENCE\tSTATUS\tEMAIL\tPACKAGE\tAMOUNT\tCOUPON\tCREATED")
			for _, l := range leads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					l.Reference, l.Status, l.Email, l.Package, l.Amount, l.CouponCode,
					l.CreatedAt.Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\ntotal %d, paid %d, pending %d, failed %d\n",
				counts.Total, counts.Paid, counts.Pending, counts.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "only show leads with this status")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}
