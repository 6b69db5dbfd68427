// Package coins maps coin symbols to the keywords that identify them in free text.
package coins

import (
	"fmt"
	"regexp"
	"strings"
)

// Coin is one entry of the keyword table.
type Coin struct {
	Symbol   string
	Keywords []string
}

// Table is an ordered, immutable coin -> keywords mapping. Patterns are
// compiled once when the table is built.
type Table struct {
	coins    []Coin
	patterns [][]*regexp.Regexp
}

// NewTable validates the entries and compiles one whole-word pattern per
// keyword. Symbols are stored upper-cased, so "btc" and "BTC" collide. Blank
// keywords are dropped; a coin left with none never matches.
func NewTable(entries []Coin) (*Table, error) {
	t := &Table{
		coins:    make([]Coin, 0, len(entries)),
		patterns: make([][]*regexp.Regexp, 0, len(entries)),
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("coin symbol is required")
		}
		if _, dup := seen[symbol]; dup {
			return nil, fmt.Errorf("duplicate coin symbol %q", symbol)
		}
		seen[symbol] = struct{}{}

		keywords := make([]string, 0, len(entry.Keywords))
		patterns := make([]*regexp.Regexp, 0, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			re, err := compileKeyword(kw)
			if err != nil {
				return nil, fmt.Errorf("compile keyword %q for %s: %w", kw, symbol, err)
			}
			keywords = append(keywords, kw)
			patterns = append(patterns, re)
		}
		t.coins = append(t.coins, Coin{Symbol: symbol, Keywords: keywords})
		t.patterns = append(t.patterns, patterns)
	}
	return t, nil
}

// MustTable is NewTable for static tables in tests and defaults.
func MustTable(entries []Coin) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// A keyword boundary is anything but a Unicode letter, digit or underscore.
const boundary = `[^\p{L}\p{N}_]`

func compileKeyword(kw string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?:^|` + boundary + `)` + regexp.QuoteMeta(strings.ToUpper(kw)) + `(?:$|` + boundary + `)`)
}

// Len returns the number of coins in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.coins)
}

// Symbols returns coin symbols in table order.
func (t *Table) Symbols() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.coins))
	for _, c := range t.coins {
		out = append(out, c.Symbol)
	}
	return out
}

// Coins returns a copy of the table entries in order.
func (t *Table) Coins() []Coin {
	if t == nil {
		return nil
	}
	out := make([]Coin, 0, len(t.coins))
	for _, c := range t.coins {
		out = append(out, Coin{Symbol: c.Symbol, Keywords: append([]string(nil), c.Keywords...)})
	}
	return out
}

// Unmatchable lists coins that have no usable keyword.
func (t *Table) Unmatchable() []string {
	if t == nil {
		return nil
	}
	var out []string
	for i, c := range t.coins {
		if len(t.patterns[i]) == 0 {
			out = append(out, c.Symbol)
		}
	}
	return out
}

// Has reports whether symbol, in any case, is a key of the table.
func (t *Table) Has(symbol string) bool {
	if t == nil {
		return false
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, c := range t.coins {
		if c.Symbol == symbol {
			return true
		}
	}
	return false
}
