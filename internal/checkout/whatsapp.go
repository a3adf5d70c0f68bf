package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
)

var (
	ErrInvalidRequest = errors.New("invalid checkout request")
	ErrNotConfigured  = errors.New("whatsapp checkout is not configured")
)

type Item struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=999"`
}

type Request struct {
	Items        []Item `json:"items" validate:"required,min=1,max=50,dive"`
	CustomerName string `json:"customerName" validate:"max=100"`
	Note         string `json:"note" validate:"max=500"`
}

type Line struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	UnitCents     int64  `json:"unit_cents"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type Order struct {
	Lines      []Line `json:"lines"`
	TotalCents int64  `json:"total_cents"`
	Message    string `json:"message"`
	URL        string `json:"url"`
}

type ProductLookup interface {
	ProductsByID(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Service turns a cart into a wa.me link. Prices come from the catalog; nothing is reserved.
type Service struct {
	Products ProductLookup
	Number   string // international format, digits only

	validate *validator.Validate
	printer  *message.Printer
}

func NewService(products ProductLookup, number string) *Service {
	return &Service{
		Products: products,
		Number:   number,
		validate: validator.New(),
		printer:  message.NewPrinter(language.Indonesian),
	}
}

func (s *Service) Build(ctx context.Context, req Request) (Order, error) {
	if s.Number == "" {
		return Order{}, ErrNotConfigured
	}
	if err := s.validate.Struct(req); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// merge repeated products, keeping first-seen order
	qty := map[string]int{}
	var ids []string
	for _, it := range req.Items {
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}

	products, err := s.Products.ProductsByID(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	var o Order
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return Order{}, fmt.Errorf("%w: product %s", catalog.ErrNotFound, id)
		}
		if p.StockQuantity < qty[id] {
			return Order{}, fmt.Errorf("%w: %s has %d left", catalog.ErrInsufficientStock, p.Name, p.StockQuantity)
		}
		l := Line{ProductID: id, Name: p.Name, Quantity: qty[id], UnitCents: p.PriceCents}
		l.SubtotalCents = l.UnitCents * int64(l.Quantity)
		o.Lines = append(o.Lines, l)
		o.TotalCents += l.SubtotalCents
	}

	o.Message = s.message(o, req)
	o.URL = "https://wa.me/" + s.Number + "?text=" + strings.ReplaceAll(url.QueryEscape(o.Message), "+", "%20")
	return o, nil
}

func (s *Service) message(o Order, req Request) string {
	var b strings.Builder
	b.WriteString("Halo BeYou, saya ingin memesan:\n")
	for i, l := range o.Lines {
		fmt.Fprintf(&b, "%d. %s x%d @ %s = %s\n", i+1, l.Name, l.Quantity, s.Rupiah(l.UnitCents), s.Rupiah(l.SubtotalCents))
	}
	fmt.Fprintf(&b, "Total: %s", s.Rupiah(o.TotalCents))
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		fmt.Fprintf(&b, "\nNama: %s", name)
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		fmt.Fprintf(&b, "\nCatatan: %s", note)
	}
	return b.String()
}

// Rupiah formats an amount in cents as whole rupiah with Indonesian digit grouping,
// e.g. 15000000 -> "Rp 150.000".
func (s *Service) Rupiah(cents int64) string {
	return "Rp " + s.printer.Sprintf("%d", cents/100)
}
