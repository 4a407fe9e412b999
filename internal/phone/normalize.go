// Package phone turns loosely formatted phone-number input into the digit
// sequences the timezone resolver matches against.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// MinResolvableDigits is the shortest digit sequence worth probing the lookup tables with.
const MinResolvableDigits = 4

// unknownRegion is phonenumbers' marker for a number with no matching region.
const unknownRegion = "ZZ"

// Digits is a normalized phone number: ASCII digits, optionally preceded by a single "+".
type Digits string

// Normalize strips every character except digits and a single leading "+".
// It never fails; garbage input yields an empty or short value that does not resolve.
func Normalize(raw string) Digits {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	if raw[0] == '+' {
		b.WriteByte('+')
		raw = raw[1:]
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 1 && strings.HasPrefix(b.String(), "+") {
		return ""
	}
	return Digits(b.String())
}

// Number returns the digits with the "+" marker consumed.
func (d Digits) Number() string {
	return strings.TrimPrefix(string(d), "+")
}

// International reports whether the input carried an explicit "+" marker.
func (d Digits) International() bool {
	return strings.HasPrefix(string(d), "+")
}

// Resolvable reports whether there are enough digits to attempt a table lookup.
func (d Digits) Resolvable() bool {
	return len(d.Number()) >= MinResolvableDigits
}

// FormatE164 renders raw in E.164 form for display. The digits are read the way
// the resolver reads them: the leading digits are always the country code, with or
// without a "+". The second return is false when the number cannot be parsed.
func FormatE164(raw string) (string, bool) {
	num, ok := parse(raw)
	if !ok {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// RegionCode returns the ISO 3166 region for raw (e.g. "US", "GB"), or "" when unknown.
// It is presentation metadata only; timezone resolution never consults it.
func RegionCode(raw string) string {
	num, ok := parse(raw)
	if !ok {
		return ""
	}
	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == unknownRegion {
		return ""
	}
	return region
}

func parse(raw string) (*phonenumbers.PhoneNumber, bool) {
	d := Normalize(raw)
	if !d.Resolvable() {
		return nil, false
	}
	num, err := phonenumbers.Parse("+"+d.Number(), unknownRegion)
	if err != nil {
		return nil, false
	}
	return num, true
}
