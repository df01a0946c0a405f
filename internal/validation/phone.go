package validation

import (
	"fmt"
	"strings"
)

// Country code every accepted number is normalized to.
const countryCode = "7"

// phoneDigits extracts the subscriber digits and reports whether the input is
// a national 10-digit number or an 11-digit number starting with 7 or 8.
func phoneDigits(phone string) (string, bool) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch len(digits) {
	case 10:
		return countryCode + digits, true
	case 11:
		if digits[0] == '7' || digits[0] == '8' {
			return countryCode + digits[1:], true
		}
	}

	return "", false
}

// IsValidPhone reports whether phone can be normalized by FormatPhone.
func IsValidPhone(phone string) bool {
	_, ok := phoneDigits(phone)
	return ok
}

// FormatPhone normalizes a phone number to "+7 (XXX) XXX-XX-XX".
// Input that is not a valid phone is returned unchanged.
func FormatPhone(phone string) string {
	digits, ok := phoneDigits(phone)
	if !ok {
		return phone
	}

	return fmt.Sprintf("+%s (%s) %s-%s-%s", digits[:1], digits[1:4], digits[4:7], digits[7:9], digits[9:11])
}

// NormalizePhone combines IsValidPhone and FormatPhone.
func NormalizePhone(phone string) (string, bool) {
	if !IsValidPhone(phone) {
		return "", false
	}
	return FormatPhone(phone), true
}
