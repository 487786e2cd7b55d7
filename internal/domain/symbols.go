package domain

import "strings"

// DefaultSymbols are tracked when no symbol list is configured.
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT"}

// ParseSymbols splits a comma separated symbol list, upper-casing and
// dropping blanks and duplicates.
func ParseSymbols(raw string) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		s := strings.ToUpper(strings.TrimSpace(part))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	return symbols
}
