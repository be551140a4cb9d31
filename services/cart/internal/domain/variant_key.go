package domain

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// VariantKey identifies a cart line: a product plus optional color and size.
// An empty Color or Size means the dimension is absent. The struct is
// comparable, so it can key maps directly.
type VariantKey struct {
	ProductID int64
	Color     string
	Size      string
}

// NewVariantKey builds a key from its parts.
func NewVariantKey(productID int64, color, size string) VariantKey {
	return VariantKey{ProductID: productID, Color: color, Size: size}
}

// Compare orders keys by product id, then color, then size.
func (k VariantKey) Compare(o VariantKey) int {
	return cmp.Or(
		cmp.Compare(k.ProductID, o.ProductID),
		strings.Compare(k.Color, o.Color),
		strings.Compare(k.Size, o.Size),
	)
}

// String renders the key with quoted components, so a color containing a
// separator cannot collide with another key.
func (k VariantKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.ProductID, strconv.Quote(k.Color), strconv.Quote(k.Size))
}

// ParseVariantKey is the inverse of String.
func ParseVariantKey(s string) (VariantKey, error) {
	idPart, rest, ok := strings.Cut(s, "/")
	if !ok {
		return VariantKey{}, fmt.Errorf("parse variant key %q: missing separator", s)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return VariantKey{}, fmt.Errorf("parse variant key %q: %w", s, err)
	}

	color, rest, err := unquotePrefix(rest)
	if err != nil {
		return VariantKey{}, fmt.Errorf("parse variant key %q: color: %w", s, err)
	}
	rest, ok = strings.CutPrefix(rest, "/")
	if !ok {
		return VariantKey{}, fmt.Errorf("parse variant key %q: missing size", s)
	}
	size, rest, err := unquotePrefix(rest)
	if err != nil {
		return VariantKey{}, fmt.Errorf("parse variant key %q: size: %w", s, err)
	}
	if rest != "" {
		return VariantKey{}, fmt.Errorf("parse variant key %q: trailing data", s)
	}

	return VariantKey{ProductID: id, Color: color, Size: size}, nil
}

func unquotePrefix(s string) (string, string, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", err
	}
	value, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", err
	}
	return value, s[len(prefix):], nil
}
