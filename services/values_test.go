package services

import (
	"testing"
	"time"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"Ksh 1,234.50", "1234.5", true},
		{"50.00", "50", true},
		{"  80 ", "80", true},
		{"-", "", false},
		{"N/A", "", false},
		{"", "", false},
		{"free", "", false},
		{"1.2.3", "", false},
	}

	for _, tt := range tests {
		got := ParsePrice(tt.raw)
		if got.Valid != tt.valid {
			t.Errorf("ParsePrice(%q).Valid = %v; want %v", tt.raw, got.Valid, tt.valid)
			continue
		}
		if tt.valid && got.Decimal.String() != tt.want {
			t.Errorf("ParsePrice(%q) = %s; want %s", tt.raw, got.Decimal, tt.want)
		}
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{"5,000 kg", "5000", true},
		{"120 bags of 90kg", "120", true},
		{"High", "", false},
		{"Low", "", false},
		{"-", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got := ParseVolume(tt.raw)
		if got.Valid != tt.valid {
			t.Errorf("ParseVolume(%q).Valid = %v; want %v", tt.raw, got.Valid, tt.valid)
			continue
		}
		if tt.valid && got.Decimal.String() != tt.want {
			t.Errorf("ParseVolume(%q) = %s; want %s", tt.raw, got.Decimal, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"2024-1-5", "2024-01-05"},
		{"15/01/2024", "2024-01-15"},
		{"15-01-2024", "2024-01-15"},
		{" 03/04/2024 ", "2024-04-03"}, // day first wins when ambiguous
		{"01/31/2024", "2024-01-31"},   // only valid month first
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.raw)
		if !ok {
			t.Errorf("ParseDate(%q) failed", tt.raw)
			continue
		}
		if s := got.Format("2006-01-02"); s != tt.want {
			t.Errorf("ParseDate(%q) = %s; want %s", tt.raw, s, tt.want)
		}
	}
}

func TestParseDateFallsBackToToday(t *testing.T) {
	today := time.Now().Format("2006-01-02")
	for _, raw := range []string{"", "yesterday", "2024/13/45"} {
		got, ok := ParseDate(raw)
		if ok {
			t.Errorf("ParseDate(%q) should report failure", raw)
		}
		if s := got.Format("2006-01-02"); s != today {
			t.Errorf("ParseDate(%q) = %s; want today %s", raw, s, today)
		}
	}
}
