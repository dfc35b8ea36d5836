// Package parse extracts rent, fee, room count and address fragments from the
// free text of listing cards. Every function degrades to nil or "" on input it
// does not understand; none of them panic.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	numberRe        = regexp.MustCompile(`\d[\d.]*`)
	plusRe          = regexp.MustCompile(`(\d[\d.]*)\s*\+\s*(\d[\d.]*)`)
	feeLabelRe      = regexp.MustCompile(`(?i)expensas`)
	feeAfterLabelRe = regexp.MustCompile(`(?i)expensas\s*:?\s*\$?\s*(\d[\d.]*)`)
	feeBeforeRe     = regexp.MustCompile(`(?i)(\d[\d.]*)\s*\$?\s*expensas`)
	roomCountRe     = regexp.MustCompile(`(?i)^\s*(amb|dorm)`)

	monoRe = regexp.MustCompile(`(?i)mono\s*-?\s*ambiente`)
	ambRe  = regexp.MustCompile(`(?i)(\d+)\s*amb`)
	dormRe = regexp.MustCompile(`(?i)(\d+)\s*dorm`)

	addressRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2}\s*(?:e/|entre)\s*\d{1,2}\s*y\s*\d{1,2})`),
		regexp.MustCompile(`(?i)(\d{1,2}\s*y\s*\d{1,2})`),
		regexp.MustCompile(`(?i)(calle\s*\d{1,2}[^,]*)`),
		regexp.MustCompile(`(?i)(av\.?\s*\d{1,2}[^,]*)`),
	}
)

const maxAddressLen = 60

// IsForeignCurrency reports whether text quotes a price in dollars.
func IsForeignCurrency(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "USD") ||
		strings.Contains(upper, "U$S") ||
		strings.Contains(upper, "US$")
}

// PriceAndExpensas parses a price block such as "$510.000+ $70.000 expensas",
// "$300.000 Expensas : $80000" or "$ 450.000". Foreign-currency prices yield
// no price at all, and a block whose only amount follows the "expensas" label
// yields the fee without a price.
func PriceAndExpensas(text string) (price, expensas *int) {
	if strings.TrimSpace(text) == "" || IsForeignCurrency(text) {
		return nil, nil
	}
	clean := strings.NewReplacer("$", " ", "\n", " ", "\u00a0", " ").Replace(text)

	if m := plusRe.FindStringSubmatch(clean); m != nil {
		if p := toInt(m[1]); p != nil {
			return p, toInt(m[2])
		}
	}

	if loc := feeLabelRe.FindStringIndex(clean); loc != nil {
		before := numberRe.FindAllString(clean[:loc[0]], -1)
		after := numberRe.FindString(clean[loc[1]:])
		if len(before) == 0 {
			// "Consultar Expensas : $80.000": the only amount is the fee.
			return nil, toInt(after)
		}
		p := toInt(before[0])
		switch {
		case after != "":
			return p, toInt(after)
		case len(before) > 1:
			return p, toInt(before[len(before)-1])
		default:
			return p, nil
		}
	}

	return toInt(numberRe.FindString(clean)), nil
}

// Expensas finds a fee amount attached to an explicit "expensas" label,
// either "Expensas: $80.000" or "$ 50.000 Expensas".
func Expensas(text string) *int {
	if text == "" {
		return nil
	}
	for _, m := range feeAfterLabelRe.FindAllStringSubmatchIndex(text, -1) {
		rest := text[m[1]:]
		if roomCountRe.MatchString(rest) {
			continue
		}
		if v := toInt(text[m[2]:m[3]]); v != nil {
			return v
		}
	}
	if m := feeBeforeRe.FindStringSubmatch(text); m != nil {
		return toInt(m[1])
	}
	return nil
}

// Rooms returns the ambientes count: "N amb" wins over "N dorm", which is
// converted as bedrooms + 1. "Monoambiente" is 1.
func Rooms(text string) *int {
	if text == "" {
		return nil
	}
	if monoRe.MatchString(text) {
		one := 1
		return &one
	}
	if m := ambRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	if m := dormRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n < int(^uint(0)>>1) {
			rooms := n + 1
			return &rooms
		}
	}
	return nil
}

// Address returns the first street-like fragment of text ("40 e/ 14 y 15",
// "7 y 45", "calle 7 n 456", "av 44 1234"), or "".
func Address(text string) string {
	for _, re := range addressRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return truncate(strings.TrimSpace(m[1]), maxAddressLen)
		}
	}
	return ""
}

// Int parses a locale formatted integer such as "450.000".
func Int(text string) *int {
	return toInt(numberRe.FindString(text))
}

func toInt(s string) *int {
	digits := strings.ReplaceAll(s, ".", "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
