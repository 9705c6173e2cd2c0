package quran

import (
	"strconv"
	"strings"
)

const arabicIndicZero = '٠'

// ArabicIndic formats n with Arabic-Indic digits (٠..٩).
func ArabicIndic(n int) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return arabicIndicZero + (r - '0')
		}
		return r
	}, strconv.Itoa(n))
}
