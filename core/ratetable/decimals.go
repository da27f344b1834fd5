package ratetable

import (
	"strconv"
	"strings"
)

// maxSignificantDigits is the number of decimal digits a float64 is
// guaranteed to preserve.
const maxSignificantDigits = 15

// DeduceNumberOfDecimals returns the number of digits after the decimal point
// that are needed to represent the decimal number s without loss.
//
// Strings longer than 15 characters once leading zeros are removed carry
// conversion noise: they are cut to 16 characters and a trailing run of 0 or
// 9 is dropped, so "0.012830000000000001" needs 5 decimals. Values really
// needing 15 significant digits that end in 9s are undercounted; this matches
// the historical behaviour the stored tables were checked against.
func DeduceNumberOfDecimals(s string) int {
	s = strings.Trim(s, " \t")
	s = strings.TrimLeft(s, "0")

	point := strings.IndexByte(s, '.')
	if point < 0 {
		return 0
	}

	if len(s) > maxSignificantDigits {
		s = s[:maxSignificantDigits+1]
		if c := s[len(s)-1]; c == '0' || c == '9' {
			s = strings.TrimRight(s, string(c))
		}
	}

	if n := len(s) - point - 1; n > 0 {
		return n
	}
	return 0
}

// DeduceNumberOfDecimalsValues returns the largest number of decimals needed
// by any of the values, each rendered in its shortest exact decimal form.
func DeduceNumberOfDecimalsValues(values []float64) int {
	decimals := 0
	for _, v := range values {
		if n := DeduceNumberOfDecimals(strconv.FormatFloat(v, 'f', -1, 64)); n > decimals {
			decimals = n
		}
	}
	return decimals
}
