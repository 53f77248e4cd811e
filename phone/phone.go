// Package phone turns free-form phone input into messaging backend identities.
package phone

import (
	"strings"

	"golang.org/x/text/width"
)

// IdentitySuffix is appended to a normalized number to address a user on the backend.
const IdentitySuffix = "@c.us"

// Formatter normalizes local and international numbers for one default country.
type Formatter struct {
	countryCode string
}

// NewFormatter returns a formatter that prefixes national numbers with countryCode.
func NewFormatter(countryCode string) *Formatter {
	return &Formatter{countryCode: digitsOnly(countryCode)}
}

// Normalize returns the international digits of raw, or "" when raw holds no digits.
// A leading "00" is treated as an international prefix, a single leading "0" as a
// national trunk prefix replaced by the country code.
func (f *Formatter) Normalize(raw string) string {
	digits := digitsOnly(raw)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "00"):
		return digits[2:]
	case strings.HasPrefix(digits, "0"):
		return f.countryCode + digits[1:]
	default:
		return digits
	}
}

// Identity returns the backend identity of a normalized number, or "" for an empty number.
func Identity(number string) string {
	if number == "" {
		return ""
	}
	return number + IdentitySuffix
}

// Number strips the identity suffix, if present.
func Number(identity string) string {
	return strings.TrimSuffix(identity, IdentitySuffix)
}

func digitsOnly(raw string) string {
	folded := width.Fold.String(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '٠' && r <= '٩': // Arabic-Indic
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹': // Extended Arabic-Indic
			b.WriteRune('0' + (r - '۰'))
		}
	}
	return b.String()
}
