package domain

import "strings"

// NormalizeNumber rewrites a leading domestic "8" prefix to the "7" country
// code. Only the first character is considered.
func NormalizeNumber(number string) string {
	if strings.HasPrefix(number, "8") {
		return "7" + number[1:]
	}
	return number
}
