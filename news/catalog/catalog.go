// Package catalog lists the countries and public topics the news feeds understand.
package catalog

import "strings"

// country pairs a display name with its two-letter code.
type country struct {
	Name string
	Code string
}

var countries = []country{
	{Name: "United States", Code: "US"},
	{Name: "United Kingdom/Great Britain", Code: "GB"},
	{Name: "Australia", Code: "AU"},
	{Name: "Canada", Code: "CA"},
	{Name: "Singapore", Code: "SG"},
}

var publicTopics = []string{
	"business",
	"entertainment",
	"nation",
	"world",
	"science",
	"sports",
	"technology",
	"health",
}

// CountryNames returns the display names in display order.
func CountryNames() []string {
	names := make([]string, len(countries))
	for i, c := range countries {
		names[i] = c.Name
	}
	return names
}

// CountryCode maps an exact display name to its code.
func CountryCode(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range countries {
		if c.Name == name {
			return c.Code, true
		}
	}
	return "", false
}

// PublicTopicHash returns the feed token for a public topic name, matched case-insensitively.
func PublicTopicHash(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, t := range publicTopics {
		if t == key {
			return strings.ToUpper(t), true
		}
	}
	return "", false
}

// IsPublicTopicHash reports whether hash is one of the public topic tokens.
func IsPublicTopicHash(hash string) bool {
	_, ok := PublicTopicHash(hash)
	return ok && strings.ToUpper(hash) == hash
}

// PublicTopics returns the public topic names.
func PublicTopics() []string {
	return append([]string(nil), publicTopics...)
}
