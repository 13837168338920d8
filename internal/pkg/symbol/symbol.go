package symbol

import (
	"strings"
)

// Symbol is an instrument split into its base and quote legs.
type Symbol struct {
	Base  string
	Quote string
}

// Compact is the configuration and query form ("EURUSD").
func (s Symbol) Compact() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Provider is the slash form quote providers expect ("EUR/USD").
func (s Symbol) Provider() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse accepts "EURUSD", "eur/usd" or "XAU/USD". Six-letter compact codes split 3/3,
// which covers ISO currency pairs and metals quoted in a currency.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		base, quote := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if !isLetters(base) || !isLetters(quote) {
			return Symbol{}
		}
		return Symbol{Base: base, Quote: quote}
	}
	if len(s) == 6 && isLetters(s) {
		return Symbol{Base: s[:3], Quote: s[3:]}
	}
	return Symbol{}
}

// Normalize returns the compact upper-case form, or "" when s is not a pair.
func Normalize(s string) string {
	return Parse(s).Compact()
}

// NormalizeList normalizes and dedups, keeping first-seen order and dropping invalid entries.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}

func isLetters(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
