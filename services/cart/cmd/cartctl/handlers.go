package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/services/cart/internal/catalog"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/persistence"
	"github.com/utafrali/EcommerceGo/services/cart/internal/pricing"
	"github.com/utafrali/EcommerceGo/services/cart/internal/storage"
)

func errInvalidArg(name, value string) error {
	return fmt.Errorf("invalid %s %q", name, value)
}

type inspection struct {
	Key      string            `json:"key"`
	Format   string            `json:"format"`
	Items    []domain.CartLine `json:"items"`
	Count    int               `json:"count"`
	Subtotal int64             `json:"subtotal"`
}

// readCart fetches and decodes the payload under key. A missing key decodes
// as an empty cart.
func readCart(ctx context.Context, st storage.Storage, key string, ceiling int) ([]domain.CartLine, persistence.Format, error) {
	raw, err := st.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return []domain.CartLine{}, persistence.FormatEmpty, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read cart %q: %w", key, err)
	}

	adapter := persistence.New(st, key,
		persistence.WithCeiling(ceiling),
		persistence.WithLogger(logger.Discard()),
	)
	defer adapter.Close()

	lines, format := adapter.Decode(ctx, raw)
	return lines, format, nil
}

func runInspect(ctx context.Context, out io.Writer, st storage.Storage, key string, ceiling int, jsonOutput bool) error {
	lines, format, err := readCart(ctx, st, key, ceiling)
	if err != nil {
		return err
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}

	report := inspection{
		Key:      key,
		Format:   string(format),
		Items:    lines,
		Count:    domain.Count(lines),
		Subtotal: domain.Subtotal(lines),
	}
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "Key:    %s\n", report.Key)
	fmt.Fprintf(out, "Format: %s\n", report.Format)
	if len(lines) == 0 {
		fmt.Fprintln(out, "Cart is empty.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VARIANT\tNAME\tQTY\tUNIT\tTOTAL")
	for _, l := range lines {
		unit := money(l.UnitPrice)
		if l.PriceOverridden {
			unit += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", l.Key(), l.Name, l.Quantity, unit, money(l.TotalPrice))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Items:    %d\n", report.Count)
	fmt.Fprintf(out, "Subtotal: %s\n", money(report.Subtotal))
	return nil
}

func runMigrate(ctx context.Context, out io.Writer, st storage.Storage, key string, ceiling int, dryRun bool) error {
	lines, format, err := readCart(ctx, st, key, ceiling)
	if err != nil {
		return err
	}

	switch format {
	case persistence.FormatEmpty:
		fmt.Fprintf(out, "Nothing stored under %q.\n", key)
		return nil
	case persistence.FormatEnvelope:
		fmt.Fprintf(out, "Cart %q is already in the current format.\n", key)
		return nil
	case persistence.FormatInvalid:
		return fmt.Errorf("payload under %q is not a cart; leaving it untouched", key)
	}

	if dryRun {
		payload, err := persistence.Encode(lines)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		fmt.Fprintf(out, "%s\n", payload)
		return nil
	}

	// The adapter swallows storage failures, so success is taken from its
	// saved hook.
	saved := false
	adapter := persistence.New(st, key,
		persistence.WithDebounce(0),
		persistence.WithCeiling(ceiling),
		persistence.WithLogger(logger.Discard()),
		persistence.WithOnSaved(func(context.Context, []domain.CartLine) { saved = true }),
	)
	defer adapter.Close()

	adapter.Save(lines)
	adapter.Flush(ctx)
	if !saved {
		return fmt.Errorf("write cart %q: storage rejected the snapshot", key)
	}
	fmt.Fprintf(out, "Migrated %q: %d lines rewritten as envelope v%d.\n", key, len(lines), domain.CurrentVersion)
	return nil
}

func runQuote(ctx context.Context, out io.Writer, cat catalog.Provider, productID int64, quantity int) error {
	product, err := cat.Product(ctx, productID)
	if err != nil {
		return err
	}
	q := pricing.NewQuote(quantity, product.BasePrice, product.PriceBreaks)

	fmt.Fprintf(out, "%s (%s)\n", product.Name, product.SKU)
	fmt.Fprintf(out, "Quantity:   %d\n", q.Quantity)
	fmt.Fprintf(out, "Unit price: %s (base %s)\n", money(q.UnitPrice), money(q.BasePrice))
	fmt.Fprintf(out, "Total:      %s\n", money(q.Total))
	if q.Savings > 0 {
		fmt.Fprintf(out, "Savings:    %s\n", money(q.Savings))
	}
	if q.NextTier != nil {
		fmt.Fprintf(out, "Add %d more for %s each.\n", q.UnitsToNextTier, money(q.NextTier.Price))
	}
	return nil
}

// money renders integer cents as a decimal amount.
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
