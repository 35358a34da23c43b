package entity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/meridian-crm/meridian/internal/gateway"
)

var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics so "Müller" matches "muller".
func fold(s string) string {
	out, _, err := transform.String(foldTransform, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Search returns active items whose string fields contain the query,
// compared case- and accent-insensitively.
func (c *Cache) Search(query string) []gateway.Item {
	needle := fold(strings.TrimSpace(query))
	if needle == "" {
		return c.Active()
	}
	var out []gateway.Item
	for _, item := range c.Active() {
		if itemMatches(item, needle) {
			out = append(out, item)
		}
	}
	return out
}

func itemMatches(item gateway.Item, needle string) bool {
	for _, value := range item.Fields {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if strings.Contains(fold(s), needle) {
			return true
		}
	}
	return false
}
