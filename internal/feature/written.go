package feature

import (
	"regexp"
	"strconv"
	"strings"
)

// Written amounts on checks follow the conventional legal-line format:
// "Twelve Thousand Three Hundred Eighty-Four and 50/100". The parser
// accepts that shape plus the common variations (hyphens, "dollars",
// "no/100", trailing "only").

var wordUnits = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19,
}

var wordTens = map[string]int64{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var wordScales = map[string]int64{
	"thousand": 1_000,
	"million":  1_000_000,
}

var centsPattern = regexp.MustCompile(`^(\d{1,2})/100$`)

// ParseWrittenAmount converts a written amount to its numeric value.
// The second return is false when the text does not parse as an amount.
func ParseWrittenAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, " and ", " ")

	cents := int64(0)
	var total, current int64
	sawWord := false

	for _, token := range strings.Fields(s) {
		switch {
		case token == "dollars" || token == "dollar" || token == "only":
			continue
		case token == "no/100" || token == "xx/100":
			continue
		case centsPattern.MatchString(token):
			m := centsPattern.FindStringSubmatch(token)
			c, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return 0, false
			}
			cents = c
			continue
		}

		if v, ok := wordUnits[token]; ok {
			current += v
			sawWord = true
			continue
		}
		if v, ok := wordTens[token]; ok {
			current += v
			sawWord = true
			continue
		}
		if token == "hundred" {
			if current == 0 {
				current = 1
			}
			current *= 100
			sawWord = true
			continue
		}
		if scale, ok := wordScales[token]; ok {
			if current == 0 {
				current = 1
			}
			total += current * scale
			current = 0
			sawWord = true
			continue
		}

		return 0, false
	}

	if !sawWord {
		return 0, false
	}
	return float64(total+current) + float64(cents)/100, true
}
