package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	botconfig "github.com/m3rciful/slrbot/bot/config"
	"github.com/m3rciful/slrbot/bot/order"
)

func newOrdersCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect stored orders",
	}
	cmd.AddCommand(newOrdersListCmd(flags))
	return cmd
}

func newOrdersListCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := botconfig.LoadStorage(flags.resolve())
			if err != nil {
				return err
			}
			s, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			seq := order.NewSequencer(s.Store, order.SequencerOptions{Location: cfg.Location()})
			n := cfg.Orders.RecentLimit
			if cmd.Flags().Changed("limit") {
				n = limit
			}
			list, err := seq.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			counter, err := seq.Counter(cmd.Context())
			if err != nil {
				return err
			}
			return printOrders(cmd.OutOrStdout(), list, counter, cfg.Location())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of orders to show, 0 for all (default orders.recent_limit)")
	return cmd
}

func printOrders(w io.Writer, list []order.Order, counter int64, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDATE\tCUSTOMER\tSERVICE\tAMOUNT\tADDRESS")
	for _, o := range list {
		who := o.DisplayName
		if o.Handle != "" {
			who += " @" + o.Handle
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderNo,
			o.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			who,
			o.Service,
			o.Amount,
			o.Address,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d shown, counter at %d\n", len(list), counter)
	return err
}
