package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/catalog"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/ariefcatur/go-shopora-console/internal/shopapi"
	"github.com/spf13/cobra"
)

type app struct {
	backend string
	token   string
	timeout time.Duration
}

func (a *app) client() (*shopapi.Client, error) {
	c, err := shopapi.New(a.backend, shopapi.WithTimeout(a.timeout))
	if err != nil {
		return nil, err
	}
	if a.token != "" {
		c = c.WithToken(a.token)
	}
	return c, nil
}

func newRootCmd(backend, token string, timeout time.Duration) *cobra.Command {
	a := &app{backend: backend, token: token, timeout: timeout}

	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Operate a Shopora store from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.backend, "backend", backend, "Shopora REST API base URL")
	root.PersistentFlags().StringVar(&a.token, "token", token, "bearer token (defaults to $SHOPORA_TOKEN)")

	root.AddCommand(newProductsCmd(a), newOrdersCmd(a), newMarketsCmd(a), newTaxRulesCmd(a), newPayoutsCmd(a))
	return root
}

func newProductsCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog (active products only unless --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			var ps []catalog.Product
			if all {
				ps, err = c.ListProducts(cmd.Context())
			} else {
				ps, err = catalog.NewBrowser(c, nil).ListActiveProducts(cmd.Context())
			}
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), ps)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include draft and archived products")
	cmd.AddCommand(newProductStatusCmd(a, "publish", catalog.StatusActive), newProductStatusCmd(a, "archive", catalog.StatusArchived), newProductDeleteCmd(a))
	return cmd
}

func newProductStatusCmd(a *app, verb string, to catalog.Status) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <product-id>",
		Short: "Set a product's status to " + string(to),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			p, err := c.UpdateProduct(cmd.Context(), args[0], catalog.ProductPatch{Status: &to})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "product %s: %s\n", p.ID, p.Status)
			return nil
		},
	}
}

func newProductDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "product %s deleted\n", args[0])
			return nil
		},
	}
}

func newMarketsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List the store's sales markets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ms, err := c.ListMarkets(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCURRENCY\tDOMAIN")
			for _, m := range ms {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Status, m.Currency, m.Domain)
			}
			return tw.Flush()
		},
	}
}

func newTaxRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tax-rules",
		Short: "List tax rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			rs, err := c.ListTaxRules(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOUNTRY\tREGION\tRATE")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%%\n", r.ID, r.Name, r.Country, r.Region, r.Rate.String())
			}
			return tw.Flush()
		},
	}
}

func newPayoutsCmd(a *app) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "List payouts to the store's bank account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if summary {
				s, err := c.PayoutSummary(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "paid %s, pending %s, %d payouts\n", s.Paid, s.Pending, s.Count)
				return nil
			}
			ps, err := c.ListPayouts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tSTATUS\tBANK")
			for _, p := range ps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.CreatedAt.Format(time.DateOnly), p.Amount, p.Status, p.Bank)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print totals instead of the list")
	return cmd
}

func newOrdersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and manage orders",
	}
	cmd.AddCommand(newOrdersListCmd(a), newSetStatusCmd(a))
	return cmd
}

func newOrdersListCmd(a *app) *cobra.Command {
	var (
		q      orders.ListQuery
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := orders.ParseStatus(status)
				if err != nil {
					return err
				}
				q.Status = st
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			page, err := c.ListOrders(cmd.Context(), q)
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "free-text search")
	cmd.Flags().StringVar(&status, "status", "", "only orders in this status")
	cmd.Flags().IntVar(&q.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "page size")
	return cmd
}

func newSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <order-id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := orders.ParseStatus(args[1])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			current, err := c.GetOrder(ctx, args[0])
			if err != nil {
				return err
			}
			updated, err := orders.NewDetail(current, c).ChangeStatus(ctx, to)
			if errors.Is(err, orders.ErrInvalidTransition) {
				return fmt.Errorf("%w (allowed: %v)", err, current.Status.Next())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s: %s -> %s\n", updated.ID, current.Status, updated.Status)
			return nil
		},
	}
}

func printProducts(w io.Writer, ps []catalog.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPRICE")
	for _, p := range ps {
		price := "-"
		if v, ok := p.Variant(""); ok && v.Price != nil {
			price = v.Price.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, price)
	}
	_ = tw.Flush()
}

func printOrders(w io.Writer, page orders.Page) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tSTATUS\tTOTAL\tCUSTOMER")
	for _, o := range page.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Number, o.Status, o.Total, o.Customer.Email)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "page %d, %d of %d orders\n", page.Meta.Page, len(page.Data), page.Meta.Total)
}
