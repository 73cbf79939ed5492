package domain

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// MaxCartLines bounds the number of lines accepted before they are merged.
const MaxCartLines = 1024

type CartLine struct {
	Sku      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

// CartFromSkus turns a plain list of ids into unit lines. Duplicates are
// kept; NormalizeCart folds them.
func CartFromSkus(skus []string) []CartLine {
	lines := make([]CartLine, 0, len(skus))
	for _, sku := range skus {
		lines = append(lines, CartLine{Sku: sku, Quantity: 1})
	}
	return lines
}

// NormalizeCart merges duplicate skus by summing their quantities and
// returns one line per sku in lock order (ascending sku). Every caller
// that locks resources must go through this order.
func NormalizeCart(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if len(lines) > MaxCartLines {
		return nil, errors.Wrapf(ErrCartTooLarge, "%d lines, at most %d", len(lines), MaxCartLines)
	}

	bySku := make(map[string]int64, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "sku %s quantity %d", l.Sku, l.Quantity)
		}
		if bySku[l.Sku] > math.MaxInt64-l.Quantity {
			return nil, errors.Wrapf(ErrInvalidQuantity, "sku %s quantity overflows", l.Sku)
		}
		bySku[l.Sku] += l.Quantity
	}

	out := make([]CartLine, 0, len(bySku))
	for sku, qty := range bySku {
		out = append(out, CartLine{Sku: sku, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sku < out[j].Sku })
	return out, nil
}

// Units is the total quantity across lines.
func Units(lines []CartLine) int64 {
	var n int64
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
