package timezone

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callwindow/internal/phone"
)

func TestResolveEveryAreaCode(t *testing.T) {
	require.NotEmpty(t, areaCodes)
	for code, want := range areaCodes {
		got, ok := Resolve("+1" + code + "5551234")
		if !ok || got != want {
			t.Errorf("Resolve(+1%s5551234) = %q, %v; want %q", code, got, ok, want)
		}
	}
}

func TestResolveKnownNumbers(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+14155551234", "America/Los_Angeles"},
		{"+12125551234", "America/New_York"},
		{"+13125551234", "America/Chicago"},
		{"+13035551234", "America/Denver"},
		{"+16025551234", "America/Phoenix"},
		{"+18085551234", "Pacific/Honolulu"},
		{"+14165551234", "America/Toronto"},
		{"+442071234567", "Europe/London"},
		{"+819012345678", "Asia/Tokyo"},
		{"+33142685300", "Europe/Paris"},
		{"+61291234567", "Australia/Sydney"},
		{"+919812345678", "Asia/Kolkata"},
		{"+74951234567", "Europe/Moscow"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Resolve(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLongestPrefixWins(t *testing.T) {
	got, ok := Resolve("+352621123456")
	require.True(t, ok)
	assert.Equal(t, "Europe/Luxembourg", got)

	// Kazakhstan shares the 7 prefix with Russia.
	got, ok = Resolve("+77012345678")
	require.True(t, ok)
	assert.Equal(t, "Asia/Almaty", got)

	r := NewResolver(Tables{CountryCodes: map[string]string{
		"3":   "Etc/GMT-3",
		"35":  "Etc/GMT-2",
		"352": "Europe/Luxembourg",
	}})
	got, ok = r.Resolve("+352621123456")
	require.True(t, ok)
	assert.Equal(t, "Europe/Luxembourg", got)

	got, ok = r.Resolve("+359881234567")
	require.True(t, ok)
	assert.Equal(t, "Etc/GMT-2", got)

	got, ok = r.Resolve("+3012345678")
	require.True(t, ok)
	assert.Equal(t, "Etc/GMT-3", got)
}

func TestResolveNANPMissFallsBackToCountryCode(t *testing.T) {
	// 999 is not an assigned area code, so the 1-digit country code answers.
	got, ok := Resolve("+19995551234")
	require.True(t, ok)
	assert.Equal(t, "America/New_York", got)

	r := NewResolver(Tables{AreaCodes: map[string]string{}, CountryCodes: map[string]string{}})
	_, ok = r.Resolve("+14155551234")
	assert.False(t, ok)
}

func TestResolveBareTenDigitsIsNotNANP(t *testing.T) {
	// Without a leading 1 the area-code table is skipped, so "212" is Morocco's calling code.
	got, ok := Resolve("2125550100")
	require.True(t, ok)
	assert.Equal(t, "Africa/Casablanca", got)

	got, ok = Resolve("(212) 555-0100")
	require.True(t, ok)
	assert.Equal(t, "Africa/Casablanca", got)

	got, ok = Resolve("12125550100")
	require.True(t, ok)
	assert.Equal(t, "America/New_York", got)
}

func TestResolveUnresolvable(t *testing.T) {
	for _, raw := range []string{"", "+1", "abc", "+", "123", "(+)-  "} {
		t.Run(raw, func(t *testing.T) {
			got, ok := Resolve(raw)
			assert.False(t, ok)
			assert.Empty(t, got)
		})
	}

	// 0 is not a calling code prefix.
	_, ok := Resolve("+0123456789")
	assert.False(t, ok)
}

func TestResolveFormattingTolerance(t *testing.T) {
	a, okA := Resolve("+1 (415) 555-1234")
	b, okB := Resolve("14155551234")
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
}

func TestResolveDigits(t *testing.T) {
	got, ok := defaultResolver.ResolveDigits(phone.Digits("+12125551234"))
	require.True(t, ok)
	assert.Equal(t, "America/New_York", got)
}

func TestTableZonesLoad(t *testing.T) {
	seen := map[string]bool{}
	for _, tables := range []map[string]string{areaCodes, countryCodes} {
		for code, tz := range tables {
			if seen[tz] {
				continue
			}
			seen[tz] = true
			if _, err := time.LoadLocation(tz); err != nil {
				t.Errorf("code %s: zone %q does not load: %v", code, tz, err)
			}
		}
	}
}

func TestTableKeysAreDigits(t *testing.T) {
	for code := range areaCodes {
		assert.Len(t, code, 3, "area code %q", code)
	}
	for code := range countryCodes {
		assert.True(t, len(code) >= 1 && len(code) <= 3, "country code %q", code)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "country code %q", code)
		}
	}
}

func TestZoneAccessors(t *testing.T) {
	tz, ok := AreaCodeZone("415")
	assert.True(t, ok)
	assert.Equal(t, "America/Los_Angeles", tz)

	tz, ok = CountryCodeZone("44")
	assert.True(t, ok)
	assert.Equal(t, "Europe/London", tz)

	_, ok = CountryCodeZone("999")
	assert.False(t, ok)
}
