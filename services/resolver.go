package services

import (
	"regexp"
	"strings"

	"kamis-scraper/models"
)

// marketCountyPatterns are tried in order; each captures (market, county).
var marketCountyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s*[-–]\s*(.+)`), // "Wakulima - Nairobi"
	regexp.MustCompile(`^(.+?)\s*\((.+?)\)`),   // "Kongowea (Mombasa)"
	regexp.MustCompile(`^(.+?)\s*,\s*(.+)`),    // "Kibuye, Kisumu"
}

// ResolveMarketCounty splits a combined market cell into market and county.
// Text matching no pattern is returned whole with an unknown county.
func ResolveMarketCounty(text string) (market, county string) {
	for _, re := range marketCountyPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return strings.TrimSpace(text), models.UnknownCounty
}
