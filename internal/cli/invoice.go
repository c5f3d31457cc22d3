package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-invoice/pkg/client"
)

func newInvoiceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoice",
		Aliases: []string{"invoices"},
		Short:   "Generate and list invoices",
	}
	cmd.AddCommand(newInvoiceGenerateCommand(a), newInvoiceListCommand(a))
	return cmd
}

func newInvoiceGenerateCommand(a *app) *cobra.Command {
	var (
		items    []string
		saved    bool
		output   string
		override bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render an invoice PDF",
		Example: `  invoicectl invoice generate --item "Widget:2:10.5" --item "Gadget:1:45" -o invoice.pdf
  invoicectl invoice generate --saved -o march.pdf`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			if saved {
				products, err := client.Retry(cmd.Context(), client.DefaultRetryPolicy(), a.client.ListProducts)
				if err != nil {
					return sessionError(err)
				}
				for _, p := range products {
					lines = append(lines, client.InvoiceItem{Name: p.Name, Quantity: p.Qty, Rate: p.Rate})
				}
			}
			if len(lines) == 0 {
				return errors.New("nothing to invoice; pass --item or --saved")
			}

			if !override {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists; pass --force to overwrite", output)
				}
			}

			pdf, err := a.client.GenerateInvoice(cmd.Context(), client.InvoiceRequest{Products: lines})
			if err != nil {
				return sessionError(err)
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			fmt.Fprintf(a.out, "Wrote %s (%d bytes, %d lines)\n", output, len(pdf), len(lines))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&items, "item", nil, `invoice line as "name:qty:rate" (repeatable)`)
	cmd.Flags().BoolVar(&saved, "saved", false, "include every saved product")
	cmd.Flags().StringVarP(&output, "output", "o", "invoice.pdf", "PDF destination")
	cmd.Flags().BoolVar(&override, "force", false, "overwrite an existing output file")
	return cmd
}

func newInvoiceListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated invoices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			invoices, err := client.Retry(cmd.Context(), client.DefaultRetryPolicy(), a.client.ListInvoices)
			if err != nil {
				return sessionError(err)
			}
			if len(invoices) == 0 {
				fmt.Fprintln(a.out, "No invoices yet")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tDATE\tSUBTOTAL\tGST\tTOTAL")
			for _, inv := range invoices {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\n", inv.Number, inv.IssuedAt.Format("2006-01-02"), inv.Subtotal, inv.Tax, inv.Total)
			}
			return tw.Flush()
		},
	}
}

// parseItems reads "name:qty:rate"; the name itself may contain colons.
func parseItems(raw []string) ([]client.InvoiceItem, error) {
	items := make([]client.InvoiceItem, 0, len(raw))
	for _, s := range raw {
		rateAt := strings.LastIndex(s, ":")
		if rateAt <= 0 {
			return nil, fmt.Errorf("invalid item %q: want name:qty:rate", s)
		}
		qtyAt := strings.LastIndex(s[:rateAt], ":")
		if qtyAt <= 0 {
			return nil, fmt.Errorf("invalid item %q: want name:qty:rate", s)
		}

		name := strings.TrimSpace(s[:qtyAt])
		qty, err := strconv.Atoi(strings.TrimSpace(s[qtyAt+1 : rateAt]))
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("invalid quantity in %q", s)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(s[rateAt+1:]), 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid rate in %q", s)
		}

		items = append(items, client.InvoiceItem{Name: name, Quantity: qty, Rate: rate})
	}
	return items, nil
}
