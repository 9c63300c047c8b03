package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/RestinGreen/stable-pricer/pkg/router"
	"github.com/spf13/cobra"
)

func priceCmd(setup func() (*app, error)) *cobra.Command {
	var places int32

	cmd := &cobra.Command{
		Use:   "price [token address]...",
		Short: "Price tokens once from on-chain reserves",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			ctx := cmd.Context()
			access, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer access.conn.Close()

			tokens, err := a.resolveTokens(ctx, access.binding, args)
			if err != nil {
				return err
			}

			r := router.New(access.reader, a.general, a.registry, router.WithLogger(a.log))
			quotes := r.Quote(ctx, tokens)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TOKEN\tADDRESS\tROUTE\tPRICE (%s)\n", a.network.Reference)
			for i, token := range tokens {
				price := "unavailable"
				if quotes[i].Available() {
					price = quotes[i].Price.ToFixed(places)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", token, token.Address.Hex(), quotes[i].Route, price)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int32Var(&places, "places", 6, "decimal places to print")
	return cmd
}
