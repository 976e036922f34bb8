package util

import (
	"regexp"
	"strconv"
	"strings"
)

func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var extractSignedNumberRegex = regexp.MustCompile(`-?\d+`)

func ParseSignedNumericString(s string) string {
	return extractSignedNumberRegex.FindString(s)
}

// DiscountPercent extracts the first number from strings such as "45% off".
func DiscountPercent(discount string) int {
	if !strings.Contains(discount, "%") {
		return 0
	}
	return SafeAtoi(ParseSignedNumericString(discount))
}

var currencySymbols = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "")

// CleanPrice removes currency symbols and collapses whitespace.
func CleanPrice(s string) string {
	return strings.Join(strings.Fields(currencySymbols.Replace(s)), " ")
}
