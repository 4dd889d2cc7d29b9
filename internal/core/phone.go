package core

// phone.go turns free-form phone strings into canonical dispatch addresses.
//
// A canonical phone is 7-15 ASCII digits with the country code applied and no
// leading '+'. The rules favour UK numbers:
//
//	+44 7946 220153  -> 447946220153  (already international)
//	07946 220153     -> 447946220153  (national trunk prefix)
//	447946220153     -> 447946220153  (international without '+')
//	7946220153       -> 447946220153  (bare mobile, trunk prefix dropped)
//	2079460000       -> 442079460000  (10/11 digits starting 1,2,7,8)
//
// Anything else is passed through unchanged, which accepts international
// numbers typed without a '+'. That fallback also accepts some malformed
// input; the messaging provider rejects what gets through.

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const (
	ukCountryCode = "44"

	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NormalizePhone returns the canonical form of raw.
// Fails with ErrEmptyInput for blank input and ErrInvalidLength when the
// result is not 7-15 digits.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyInput
	}

	international := strings.HasPrefix(raw, "+")
	digits := digitsOnly(raw)

	var candidate string
	switch {
	case international, digits == "":
		candidate = digits
	case strings.HasPrefix(digits, "0"):
		candidate = ukCountryCode + digits[1:]
	case strings.HasPrefix(digits, ukCountryCode):
		candidate = digits
	case len(digits) == 10 && digits[0] == '7':
		candidate = ukCountryCode + digits
	case (len(digits) == 10 || len(digits) == 11) && strings.IndexByte("7812", digits[0]) >= 0:
		candidate = ukCountryCode + digits
	default:
		candidate = digits
	}

	if len(candidate) < minPhoneDigits || len(candidate) > maxPhoneDigits {
		return "", ErrInvalidLength
	}
	return candidate, nil
}

// IsCanonicalPhone reports whether p is already in canonical form.
func IsCanonicalPhone(p string) bool {
	if len(p) < minPhoneDigits || len(p) > maxPhoneDigits || p[0] == '0' {
		return false
	}
	return digitsOnly(p) == p
}

// IsUKMobile reports whether canonical is a UK mobile number (447 followed by
// nine digits).
func IsUKMobile(canonical string) bool {
	return len(canonical) == 12 && strings.HasPrefix(canonical, ukCountryCode+"7") && IsCanonicalPhone(canonical)
}

// MaskPhone hides all but the last four digits for display.
func MaskPhone(canonical string) string {
	last := canonical
	if len(last) > 4 {
		last = last[len(last)-4:]
	}
	return "****-****-" + last
}

// PhoneRegion returns the ISO 3166-1 region of a canonical phone, or "" when
// the number cannot be attributed to one.
func PhoneRegion(canonical string) string {
	num, err := phonenumbers.Parse("+"+canonical, "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}

// CountryCode returns the calling code prefix of a canonical phone, or "" when
// it cannot be resolved.
func CountryCode(canonical string) string {
	num, err := phonenumbers.Parse("+"+canonical, "")
	if err != nil || num.GetCountryCode() == 0 {
		return ""
	}
	return strconv.Itoa(int(num.GetCountryCode()))
}

// digitsOnly drops every byte that is not an ASCII digit.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
