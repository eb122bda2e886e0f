package odds

import (
	"math"
	"strconv"
	"strings"
)

// ParseOdds converts bookmaker odds text to decimal odds. Fractional "a/b"
// becomes a/b+1, American "+n" becomes n/100+1 and "-n" becomes 100/n+1;
// anything else is read as decimal. Unparseable text and non-finite results
// ("NaN", "Inf", "1/0.0") yield 0.
func ParseOdds(text string) float64 {
	v := parseOdds(strings.TrimSpace(text))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseOdds(text string) float64 {
	switch {
	case text == "":
		return 0
	case strings.Contains(text, "/"):
		num, den, _ := strings.Cut(text, "/")
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n/d + 1
	case strings.HasPrefix(text, "+"):
		n, err := strconv.ParseFloat(text[1:], 64)
		if err != nil {
			return 0
		}
		return n/100 + 1
	case strings.HasPrefix(text, "-"):
		n, err := strconv.ParseFloat(text[1:], 64)
		if err != nil || n == 0 {
			return 0
		}
		return 100/n + 1
	default:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0
		}
		return v
	}
}
