package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	kafkax "github.com/ariefcatur/beyou-storefront/internal/kafka"
	"github.com/ariefcatur/beyou-storefront/internal/redisx"
	"github.com/ariefcatur/beyou-storefront/internal/revalidate"
	"github.com/ariefcatur/beyou-storefront/internal/telemetry"
)

var (
	saleProduct string
	saleQty     int
	listLimit   int
)

// recordSaleCmd goes through the same service as the admin endpoint, so caches are invalidated
// and the change event is published.
var recordSaleCmd = &cobra.Command{
	Use:   "record-sale",
	Short: "Record an offline sale and deduct stock",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		prod := kafkax.NewProducer(cfg.KafkaBrokers, catalog.TopicCatalogChanged, 16, logg)
		prod.Start(ctx)
		defer func() {
			prod.Close()
			prod.WaitClosed()
		}()

		notifier := &revalidate.Publisher{
			Cache:    revalidate.NewPageCache(rdb, cfg.PageCacheTTL),
			Producer: prod,
			Service:  cfg.ServiceName + "-ctl",
			Logger:   logg,
		}
		tel := telemetry.Noop()
		sales, err := catalog.NewSales(&catalog.SaleRepo{DB: db}, notifier, logg, tel.Tracer, tel.Meter)
		if err != nil {
			return err
		}

		sale, err := sales.Record(ctx, saleProduct, saleQty)
		if err != nil {
			return fmt.Errorf("record sale: %w", err)
		}
		p := message.NewPrinter(language.Indonesian)
		fmt.Fprintf(cmd.OutOrStdout(), "sale %s: %d x %s, total Rp %s\n",
			sale.ID, sale.QuantitySold, sale.ProductID, p.Sprintf("%d", sale.TotalAmountCents/100))
		return nil
	},
}

var listSalesCmd = &cobra.Command{
	Use:   "list-sales",
	Short: "Print the most recent sales",
	RunE: func(cmd *cobra.Command, args []string) error {
		sales, err := (&catalog.SaleRepo{DB: db}).ListSales(cmd.Context(), listLimit)
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		p := message.NewPrinter(language.Indonesian)
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tPRODUCT\tQTY\tUNIT (Rp)\tTOTAL (Rp)")
		for _, s := range sales {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				s.SaleDate.Local().Format("2006-01-02 15:04"), s.ProductName, s.QuantitySold,
				p.Sprintf("%d", s.SalePricePerUnitCents/100), p.Sprintf("%d", s.TotalAmountCents/100))
		}
		return tw.Flush()
	},
}

func init() {
	recordSaleCmd.Flags().StringVar(&saleProduct, "product", "", "Product id")
	recordSaleCmd.Flags().IntVar(&saleQty, "qty", 1, "Quantity sold")
	_ = recordSaleCmd.MarkFlagRequired("product")

	listSalesCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of sales to show")
}
