// Package location decides whether a free-text La Plata address lies inside
// the casco urbano, the grid bounded by calles 1-31, avenidas 32-72 and the
// diagonales 73-80.
package location

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/rsilvagit/deptos/internal/model"
)

// Verdict is the result of classifying an address.
type Verdict int

const (
	Unknown Verdict = iota
	Inside
	Outside
)

func (v Verdict) String() string {
	switch v {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "unknown"
	}
}

// Number bands of the casco urbano grid.
const (
	calleMin    = 1
	calleMax    = 31
	avenidaMin  = 32
	avenidaMax  = 72
	diagonalMin = 73
	diagonalMax = 80
)

// Neighbourhoods of the partido that are outside the casco.
var outsideAreas = []string{
	"city bell", "citybell", "gonnet", "gorina", "hernandez", "hernández",
	"villa elisa", "ringuelet", "tolosa", "los hornos", "san carlos",
	"altos de san lorenzo", "villa elvira", "melchor romero", "abasto",
	"olmos", "etcheverry", "arturo segui", "arturo seguí",
}

var (
	unitRe = regexp.MustCompile(`\b(?:piso|dto|depto|departamento|unidad|uf|pb|pa)\b\.?\s*\d*`)

	streetRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:calle|c\.?)\s*(\d{1,2})\b`),
		regexp.MustCompile(`\b(?:avenida|av\.?)\s*(\d{1,2})\b`),
		regexp.MustCompile(`\b(?:diagonal|diag\.?)\s*(\d{1,2})\b`),
	}
	bareNumberRe = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// Classify returns Inside, Outside or Unknown for address.
func Classify(address string) Verdict {
	if strings.TrimSpace(address) == "" {
		return Unknown
	}
	lower := strings.ToLower(address)

	for _, area := range outsideAreas {
		if strings.Contains(lower, area) {
			slog.Debug("address in outside neighbourhood", "address", address, "area", area)
			return Outside
		}
	}
	if strings.Contains(lower, "casco urbano") || strings.Contains(lower, "casco céntrico") {
		return Inside
	}

	numbers := StreetNumbers(address)
	if len(numbers) == 0 {
		return Unknown
	}
	for _, n := range numbers {
		if inBand(n) {
			return Inside
		}
	}
	slog.Debug("street numbers outside casco bands", "address", address, "numbers", numbers)
	return Outside
}

// StreetNumbers extracts the distinct numbers in 1-80 of address that may
// name a street, explicit "calle N", "av N" and "diagonal N" first. Floor and
// unit numbers are ignored.
func StreetNumbers(address string) []int {
	clean := unitRe.ReplaceAllString(strings.ToLower(address), " ")

	var (
		numbers []int
		seen    = map[int]bool{}
	)
	add := func(s string) {
		n, err := strconv.Atoi(s)
		if err != nil || n < calleMin || n > diagonalMax || seen[n] {
			return
		}
		seen[n] = true
		numbers = append(numbers, n)
	}

	for _, re := range streetRes {
		for _, m := range re.FindAllStringSubmatch(clean, -1) {
			add(m[1])
		}
	}
	for _, m := range bareNumberRe.FindAllStringSubmatch(clean, -1) {
		add(m[1])
	}
	return numbers
}

func inBand(n int) bool {
	return (n >= calleMin && n <= calleMax) ||
		(n >= avenidaMin && n <= avenidaMax) ||
		(n >= diagonalMin && n <= diagonalMax)
}

// Include turns the classification of l's address into an include decision.
// Unknown addresses are included when includeUnknown is set.
func Include(l model.Listing, includeUnknown bool) bool {
	switch Classify(l.Address) {
	case Inside:
		return true
	case Outside:
		return false
	default:
		return includeUnknown
	}
}
