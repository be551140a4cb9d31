package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
	"github.com/utafrali/EcommerceGo/services/cart/internal/pricing"
)

// Format is the shape a stored payload was found in.
type Format string

const (
	// FormatEmpty means nothing usable was stored: absent or blank.
	FormatEmpty Format = "empty"
	// FormatLegacy is the unversioned bare array of lines.
	FormatLegacy Format = "legacy"
	// FormatEnvelope is the versioned {v, items} wrapper.
	FormatEnvelope Format = "envelope"
	// FormatInvalid means the payload could not be parsed at all.
	FormatInvalid Format = "invalid"
)

// record is the permissive wire form of a persisted line. Required numbers
// are pointers so a missing field can be told apart from zero.
type record struct {
	ID            *int64              `json:"id" validate:"required,gt=0"`
	Name          string              `json:"name"`
	SKU           string              `json:"sku"`
	BasePrice     *whole              `json:"basePrice" validate:"required,gte=0"`
	Stock         *whole              `json:"stock" validate:"omitempty,gte=0"`
	MinQuantity   whole               `json:"minQuantity" validate:"gte=0"`
	MaxQuantity   whole               `json:"maxQuantity" validate:"gte=0"`
	PriceBreaks   []domain.PriceBreak `json:"priceBreaks"`
	Quantity      *whole              `json:"quantity" validate:"required,gte=1"`
	SelectedColor string              `json:"selectedColor"`
	SelectedSize  string              `json:"selectedSize"`
	UnitPrice     *whole              `json:"unitPrice"`
	TotalPrice    *whole              `json:"totalPrice"`
	PriceOverride bool                `json:"priceOverride"`
}

// whole is a stored integer that older writers may have saved with a
// fractional part. It is rounded half away from zero.
type whole int64

func (w *whole) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return fmt.Errorf("number expected, got string %s", data)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*w = whole(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("number %s: %w", n, err)
	}
	f = math.Round(f)
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("number %s out of range", n)
	}
	*w = whole(f)
	return nil
}

// envelope accepts both "v" and the older "version" key.
type envelope struct {
	V       *int              `json:"v"`
	Version *int              `json:"version"`
	Items   []json.RawMessage `json:"items"`
}

// decoded is the full result of decoding a payload.
type decoded struct {
	lines   []domain.CartLine
	format  Format
	version int
	dropped []error
	err     error
}

// Decode validates a raw stored payload and returns the lines it holds,
// with prices recomputed, along with the detected format. It never fails:
// a payload that cannot be parsed decodes to no lines and FormatInvalid.
// Lines whose stock was not recorded get the default quantity ceiling as
// their stock.
func Decode(raw []byte) ([]domain.CartLine, Format) {
	d := decode(raw, domain.DefaultQuantityCeiling)
	return d.lines, d.format
}

func decode(raw []byte, ceiling int) decoded {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decoded{lines: []domain.CartLine{}, format: FormatEmpty}
	}

	var (
		items []json.RawMessage
		d     decoded
	)
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return invalid(fmt.Errorf("decode legacy cart: %w", err))
		}
		d.format = FormatLegacy
		d.version = 1
	case '{':
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return invalid(fmt.Errorf("decode cart envelope: %w", err))
		}
		switch {
		case env.V != nil:
			d.version = *env.V
		case env.Version != nil:
			d.version = *env.Version
		}
		items = env.Items
		d.format = FormatEnvelope
	default:
		return invalid(fmt.Errorf("decode cart: unexpected payload starting with %q", raw[0]))
	}

	d.lines = make([]domain.CartLine, 0, len(items))
	for i, item := range items {
		line, err := decodeRecord(item, ceiling)
		if err != nil {
			d.dropped = append(d.dropped, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		d.lines = append(d.lines, line)
	}
	return d
}

func invalid(err error) decoded {
	return decoded{lines: []domain.CartLine{}, format: FormatInvalid, err: err}
}

func decodeRecord(raw json.RawMessage, ceiling int) (domain.CartLine, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.CartLine{}, apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}
	if err := validator.Validate(r); err != nil {
		return domain.CartLine{}, apperrors.Wrap(apperrors.ErrValidation, err.Error())
	}

	line := domain.CartLine{
		ID:            *r.ID,
		Name:          r.Name,
		SKU:           r.SKU,
		BasePrice:     int64(*r.BasePrice),
		Stock:         ceiling,
		MinQuantity:   int(r.MinQuantity),
		MaxQuantity:   int(r.MaxQuantity),
		PriceBreaks:   usableBreaks(r.PriceBreaks),
		Quantity:      int(*r.Quantity),
		SelectedColor: r.SelectedColor,
		SelectedSize:  r.SelectedSize,
	}
	if r.Stock != nil {
		line.Stock = int(*r.Stock)
	}
	// An override is only trusted together with the price it pinned.
	if r.PriceOverride && r.UnitPrice != nil && *r.UnitPrice >= 0 {
		line.PriceOverridden = true
		line.UnitPrice = int64(*r.UnitPrice)
	}
	pricing.Reprice(&line)
	return line, nil
}

// usableBreaks drops tiers that can never apply.
func usableBreaks(breaks []domain.PriceBreak) []domain.PriceBreak {
	if len(breaks) == 0 {
		return nil
	}
	out := make([]domain.PriceBreak, 0, len(breaks))
	for _, b := range breaks {
		if b.MinQty >= 1 && b.Price >= 0 {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Encode renders lines as the current envelope.
func Encode(lines []domain.CartLine) ([]byte, error) {
	data, err := json.Marshal(domain.NewEnvelope(lines))
	if err != nil {
		return nil, fmt.Errorf("encode cart envelope: %w", err)
	}
	return data, nil
}
