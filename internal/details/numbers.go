package details

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	countToken   = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)(?:\s?([KkMm])\b)?`)
	weightedAvg  = regexp.MustCompile(`(?i)weighted average of\s+(\d+(?:\.\d+)?)`)
	decimalToken = regexp.MustCompile(`\d+(?:\.\d+)?`)
	yearToken    = regexp.MustCompile(`\((\d{4})\)`)
)

// ParseCount reads the first number in text. Abbreviated forms are scaled
// and rounded ("2.1M" is 2100000, "327K" is 327000); plain numbers keep
// their digits only ("1,234" is 1234). Text without digits yields nil.
func ParseCount(text string) *int {
	m := countToken.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	number, suffix := m[1], strings.ToUpper(m[2])

	var mult float64
	switch suffix {
	case "K":
		mult = 1_000
	case "M":
		mult = 1_000_000
	default:
		n, err := strconv.Atoi(digitsOnly(number))
		if err != nil {
			return nil
		}
		return &n
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return nil
	}
	n := int(math.Round(f * mult))
	return &n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// firstInt returns the first run of digits in s.
func firstInt(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	return n, err == nil
}

// parseAverage reads the community average from a rating link, preferring
// the precise value in its tooltip.
func parseAverage(title, text string) (float64, bool) {
	if m := weightedAvg.FindStringSubmatch(title); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= 0 && v <= 5 {
			return v, true
		}
	}
	if m := decimalToken.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v >= 0 && v <= 5 {
			return v, true
		}
	}
	return 0, false
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// normList trims, drops empties and keeps the first occurrence of each value.
func normList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
