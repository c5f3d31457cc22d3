package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-invoice/pkg/client"
)

func newProductsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Manage saved products",
	}
	cmd.AddCommand(newProductsListCommand(a), newProductsAddCommand(a), newProductsDeleteCommand(a))
	return cmd
}

func newProductsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			products, err := client.Retry(cmd.Context(), client.DefaultRetryPolicy(), a.client.ListProducts)
			if err != nil {
				return sessionError(err)
			}
			if len(products) == 0 {
				fmt.Fprintln(a.out, "No products yet")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQTY\tRATE\tTOTAL")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", p.ID, p.Name, p.Qty, p.Rate, float64(p.Qty)*p.Rate)
			}
			return tw.Flush()
		},
	}
}

func newProductsAddCommand(a *app) *cobra.Command {
	var p client.NewProduct

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Save a product",
		Example: `  invoicectl products add --name "Consulting hour" --qty 3 --rate 120`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if p.Name == "" {
				return errors.New("--name is required")
			}

			created, err := a.client.CreateProduct(cmd.Context(), p)
			if err != nil {
				return sessionError(err)
			}

			fmt.Fprintf(a.out, "Added %s (id %s)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "product name (3-50 characters)")
	cmd.Flags().IntVar(&p.Qty, "qty", 1, "quantity")
	cmd.Flags().Float64Var(&p.Rate, "rate", 0, "unit rate")
	return cmd
}

func newProductsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.client.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return sessionError(err)
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}
