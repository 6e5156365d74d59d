// Package demo loads the sample catalog and customers of the intranet.
package demo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-to-cash/internal/authz"
	"github.com/ariefcatur/go-order-to-cash/internal/catalog"
	"github.com/ariefcatur/go-order-to-cash/internal/credit"
	"github.com/ariefcatur/go-order-to-cash/internal/errs"
	"github.com/shopspring/decimal"
)

type product struct {
	sku, name, category, price, location string
	stock, min                           int
	inTransit                            bool
}

var products = []product{
	{"TRN-HEX-10", "Tornillos Hexagonales 10mm (Caja x100)", "Fijación", "125.50", "A-12-03", 45, 200, false},
	{"LUB-IND-X5", "Lubricante Industrial X5 (20L)", "Lubricantes", "2850.00", "B-05-01", 12, 50, false},
	{"CJN-ROD-25", "Cojinetes de Rodillos 25mm", "Rodamientos", "485.75", "C-08-04", 8, 30, false},
	{"FLT-AIRE-H13", "Filtros de Aire HEPA H13", "Filtración", "320.00", "D-15-02", 23, 100, false},
	{"VLV-BOLA-1", `Válvula de Bola 1" Acero Inox`, "Válvulas", "675.25", "E-21-02", 78, 0, false},
	{"MNG-HIDR-3/4", `Manguera Hidráulica 3/4" (Metro)`, "Hidráulica", "95.50", "E-20-01", 230, 0, true},
}

var customers = []credit.CustomerInput{
	{ID: "CLI-001", Name: "Industrias MetalCorp C.A.", TaxID: "J-30125478-9", CreditLimit: decimal.NewFromInt(150000)},
	{ID: "CLI-002", Name: "Manufacturas del Este", TaxID: "J-29887654-2", CreditLimit: decimal.NewFromInt(80000)},
	{ID: "CLI-003", Name: "Distribuciones Omega S.A.", TaxID: "J-31256789-4", CreditLimit: decimal.NewFromInt(120000)},
	{ID: "CLI-004", Name: "Tecno-Industrial SAC", TaxID: "J-28934512-7", CreditLimit: decimal.NewFromInt(95000)},
}

// Seed creates the demo products with their opening stock and the demo
// customers. Entries that already exist are left alone, so Seed can run on
// every start.
func Seed(ctx context.Context, cat *catalog.Ledger, cr *credit.Ledger) error {
	for _, p := range products {
		_, err := cat.CreateProduct(ctx, authz.RoleDirector, catalog.ProductInput{
			SKU:       p.sku,
			Name:      p.name,
			Category:  p.category,
			UnitPrice: decimal.RequireFromString(p.price),
			Location:  p.location,
			MinStock:  p.min,
		})
		if errors.Is(err, errs.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.sku, err)
		}
		if _, err := cat.Receive(ctx, authz.RoleDirector, catalog.ReceiptInput{
			ReceiptID: "opening-" + p.sku,
			SKU:       p.sku,
			Qty:       p.stock,
			Location:  p.location,
			InTransit: p.inTransit,
		}); err != nil {
			return fmt.Errorf("seed stock %s: %w", p.sku, err)
		}
	}
	for _, c := range customers {
		_, err := cr.RegisterCustomer(ctx, authz.RoleDirector, c)
		if err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	return nil
}
