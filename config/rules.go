package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackCategory receives every commodity that matches no keyword rule.
const FallbackCategory = "Other"

// HeaderSynonyms maps a semantic column name (market, county, ...) to the
// substrings that identify it in a case-folded table header.
type HeaderSynonyms map[string][]string

// CategoryRule assigns Name to any commodity whose lower-cased name contains one of Keywords.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Rules holds the data-driven heuristics used while normalizing KAMIS tables.
// Category rules are evaluated in order; the first match wins.
type Rules struct {
	Headers    HeaderSynonyms `yaml:"headers"`
	Categories []CategoryRule `yaml:"categories"`
}

// DefaultRules returns the built-in header synonyms and category keywords.
func DefaultRules() *Rules {
	return &Rules{
		Headers: HeaderSynonyms{
			"market":         {"market", "market name", "soko"},
			"county":         {"county", "region", "county name"},
			"classification": {"classification", "variety", "type"},
			"grade":          {"grade", "quality"},
			"sex":            {"sex", "gender"},
			"wholesale":      {"wholesale price", "wholesale", "w/sale price"},
			"retail":         {"retail price", "retail", "price"},
			"volume":         {"supply volume", "volume", "quantity", "supply"},
			"date":           {"date", "price date", "recorded date"},
		},
		Categories: []CategoryRule{
			{Name: "Grains", Keywords: []string{"maize", "beans", "rice", "wheat", "sorghum", "millet", "greengrams", "ndengu"}},
			{Name: "Vegetables", Keywords: []string{"cabbage", "kale", "spinach", "tomato", "onion", "potato", "carrot", "pepper", "eggplant", "lettuce"}},
			{Name: "Fruits", Keywords: []string{"mango", "banana", "orange", "apple", "pineapple", "watermelon", "avocado", "passion"}},
			{Name: "Livestock", Keywords: []string{"cattle", "goat", "sheep", "pig", "chicken", "broiler", "layer", "beef", "mutton"}},
			{Name: "Fish", Keywords: []string{"fish", "tilapia", "nile perch", "omena", "sardine"}},
		},
	}
}

// CategoryNames lists every category the rules can produce, fallback last.
func (r *Rules) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories)+1)
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return append(names, FallbackCategory)
}

// LoadRules returns DefaultRules, overridden by the YAML file at path when path is set.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}
	if err := rules.Merge(data); err != nil {
		return nil, fmt.Errorf("rules: %q: %w", path, err)
	}
	return rules, nil
}

// Merge applies a YAML document on top of r. Header keys present in the document
// replace the built-in synonym list for that column; a non-empty categories list
// replaces the whole category table.
func (r *Rules) Merge(data []byte) error {
	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	for field, synonyms := range override.Headers {
		field = strings.ToLower(strings.TrimSpace(field))
		if _, known := r.Headers[field]; !known {
			return fmt.Errorf("unknown header field %q", field)
		}
		r.Headers[field] = lowerAll(synonyms)
	}

	if len(override.Categories) > 0 {
		for i, c := range override.Categories {
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("category rule %d has no name", i)
			}
			override.Categories[i].Keywords = lowerAll(c.Keywords)
		}
		r.Categories = override.Categories
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
