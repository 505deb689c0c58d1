// Package tariff parses catalog price specifications.
//
// A price is either a flat amount ("250", "250 ₴") or a subscription tariff
// table of month/price pairs ("1 - 150, 3 - 400, 12 - 1100 ₴").
package tariff

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty   = errors.New("tariff: empty price")
	ErrInvalid = errors.New("tariff: unparsable price")
)

var (
	tableRe    = regexp.MustCompile(`^\d+\s*-\s*[\d.]+\s*(,\s*\d+\s*-\s*[\d.]+\s*)*$`)
	entryRe    = regexp.MustCompile(`^(\d+)\s*-\s*(.+)$`)
	leadNumRe  = regexp.MustCompile(`^[+-]?\d+(\.\d+)?`)
	currencyRe = regexp.MustCompile(`(?i)\s*(₴|uah|грн\.?)\s*$`)
)

// Entry is one row of a tariff table.
type Entry struct {
	Months int
	Price  decimal.Decimal
}

// Spec is a parsed price specification.
type Spec struct {
	flat    decimal.Decimal
	entries []Entry
}

// IsTable reports whether the price string is a month/price table.
func (s Spec) IsTable() bool { return len(s.entries) > 0 }

// Entries returns the table rows in their listed order.
func (s Spec) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// MinPrice is the cheapest listed price, or the flat price.
func (s Spec) MinPrice() decimal.Decimal {
	if !s.IsTable() {
		return s.flat
	}
	m := s.entries[0].Price
	for _, e := range s.entries[1:] {
		if e.Price.LessThan(m) {
			m = e.Price
		}
	}
	return m
}

// PriceFor returns the price for an exact month match. Without a match the
// first listed entry wins; a flat spec ignores months.
func (s Spec) PriceFor(months int) decimal.Decimal {
	if !s.IsTable() {
		return s.flat
	}
	for _, e := range s.entries {
		if e.Months == months {
			return e.Price
		}
	}
	return s.entries[0].Price
}

func stripCurrency(raw string) string {
	return strings.TrimSpace(currencyRe.ReplaceAllString(strings.TrimSpace(raw), ""))
}

// IsTariffTable reports whether raw looks like a month/price table.
func IsTariffTable(raw string) bool {
	return tableRe.MatchString(stripCurrency(raw))
}

// Parse reads a flat price or a tariff table.
func Parse(raw string) (Spec, error) {
	s := stripCurrency(raw)
	if s == "" {
		return Spec{}, ErrEmpty
	}
	if tableRe.MatchString(s) {
		entries, err := parseEntries(s)
		if err != nil {
			return Spec{}, err
		}
		return Spec{entries: entries}, nil
	}
	flat, err := parseNumber(s)
	if err != nil {
		return Spec{}, err
	}
	return Spec{flat: flat}, nil
}

func parseEntries(s string) ([]Entry, error) {
	var out []Entry
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := entryRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		months, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// "1.5.0" passes the table pattern but is not a number; such a row prices at zero.
		price, err := decimal.NewFromString(strings.TrimSpace(m[2]))
		if err != nil {
			price = decimal.Zero
		}
		out = append(out, Entry{Months: months, Price: price})
	}
	if len(out) == 0 {
		return nil, ErrInvalid
	}
	return out, nil
}

// parseNumber accepts a plain decimal, or a leading numeric prefix such as "150 UAH/month".
func parseNumber(s string) (decimal.Decimal, error) {
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	lead := leadNumRe.FindString(s)
	if lead == "" {
		return decimal.Zero, ErrInvalid
	}
	return decimal.NewFromString(lead)
}

// ResolvePriceForTerm returns the price of a term, or zero when the price string is
// unparsable or resolves to a negative amount. Zero must be rejected upstream.
func ResolvePriceForTerm(raw string, months int) decimal.Decimal {
	spec, err := Parse(raw)
	if err != nil {
		return decimal.Zero
	}
	p := spec.PriceFor(months)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}
