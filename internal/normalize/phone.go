// Package normalize holds the pure helpers that turn raw spreadsheet values
// into canonical phones, ISO dates and deterministic appointment IDs.
package normalize

import "strings"

// DefaultCountryCode is stripped from canonical phones when the digit count
// indicates it is present.
const DefaultCountryCode = "55"

// CanonicalPhone reduces a raw phone value to bare national digits: strips
// everything non-numeric, a leading country code and leading zeros. Invalid
// or empty input yields "".
func CanonicalPhone(raw string) string {
	return CanonicalPhoneWithCountry(raw, DefaultCountryCode)
}

// CanonicalPhoneWithCountry is CanonicalPhone with an explicit country code.
func CanonicalPhoneWithCountry(raw, countryCode string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	digits = strings.TrimLeft(digits, "0")
	// A national number is 10 or 11 digits; anything longer that starts with
	// the country code still carries it.
	if countryCode != "" && len(digits) > 11 && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	digits = strings.TrimLeft(digits, "0")
	return digits
}

// ToE164 renders a canonical phone as +<country><digits>. Empty input stays empty.
func ToE164(canonical string) string {
	return ToE164WithCountry(canonical, DefaultCountryCode)
}

// ToE164WithCountry renders a canonical phone with an explicit country code.
func ToE164WithCountry(canonical, countryCode string) string {
	digits := digitsOnly(canonical)
	if digits == "" {
		return ""
	}
	if len(digits) > 11 && strings.HasPrefix(digits, countryCode) {
		return "+" + digits
	}
	return "+" + countryCode + digits
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
