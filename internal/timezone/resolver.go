// Package timezone maps phone numbers to IANA timezone identifiers using two
// static tables: NANP area codes for country code 1, and ITU calling codes
// for everything else.
package timezone

import "github.com/wolfman30/callwindow/internal/phone"

// nanpAreaCodeLen is the length of a NANP area code following the leading "1".
const nanpAreaCodeLen = 3

// countryCodeLengths is the probe order for ITU codes. Longest first, so a
// 3-digit code is never shadowed by a shorter code sharing its first digit.
var countryCodeLengths = []int{3, 2, 1}

// Tables holds the lookup maps a Resolver probes. Both are read-only after construction.
type Tables struct {
	AreaCodes    map[string]string
	CountryCodes map[string]string
}

// DefaultTables returns the built-in NANP and ITU tables.
func DefaultTables() Tables {
	return Tables{AreaCodes: areaCodes, CountryCodes: countryCodes}
}

// Resolver resolves phone numbers against a pair of lookup tables.
type Resolver struct {
	tables Tables
}

// NewResolver returns a Resolver over the given tables.
func NewResolver(tables Tables) *Resolver {
	return &Resolver{tables: tables}
}

var defaultResolver = NewResolver(DefaultTables())

// Resolve returns the timezone for a loosely formatted phone number using the
// built-in tables. The boolean is false when the number cannot be resolved.
func Resolve(raw string) (string, bool) {
	return defaultResolver.Resolve(raw)
}

// Resolve normalizes raw and resolves it.
func (r *Resolver) Resolve(raw string) (string, bool) {
	return r.ResolveDigits(phone.Normalize(raw))
}

// ResolveDigits resolves an already-normalized number.
func (r *Resolver) ResolveDigits(d phone.Digits) (string, bool) {
	if !d.Resolvable() {
		return "", false
	}
	digits := d.Number()

	if digits[0] == '1' && len(digits) >= 1+nanpAreaCodeLen {
		if tz, ok := r.tables.AreaCodes[digits[1:1+nanpAreaCodeLen]]; ok {
			return tz, true
		}
	}

	for _, n := range countryCodeLengths {
		if len(digits) < n {
			continue
		}
		if tz, ok := r.tables.CountryCodes[digits[:n]]; ok {
			return tz, true
		}
	}
	return "", false
}

// AreaCodeZone returns the zone for a 3-digit NANP area code.
func AreaCodeZone(code string) (string, bool) {
	tz, ok := areaCodes[code]
	return tz, ok
}

// CountryCodeZone returns the zone for an ITU calling code.
func CountryCodeZone(code string) (string, bool) {
	tz, ok := countryCodes[code]
	return tz, ok
}
