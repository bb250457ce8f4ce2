package usecase

import "strings"

const DefaultCountryCode = "81"

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "　", "", "ー", "", "－", "")

// NormalizePhone converts a local number to international form by replacing
// the leading trunk 0 with +<countryCode>. Bare digits that already begin
// with the country code only get the +. Numbers already starting with + are
// returned cleaned but otherwise unchanged, so the result is stable under
// repeated normalization.
func NormalizePhone(number, countryCode string) string {
	n := phoneCleaner.Replace(strings.TrimSpace(number))
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "+") {
		return n
	}

	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if cc == "" {
		cc = DefaultCountryCode
	}
	if strings.HasPrefix(n, "0") {
		return "+" + cc + n[1:]
	}
	if strings.HasPrefix(n, cc) {
		return "+" + n
	}
	return n
}
