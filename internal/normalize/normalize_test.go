package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMobileEquivalentForms(t *testing.T) {
	a := Mobile("+91 98765-43210")
	b := Mobile("09876543210")
	c := Mobile("9876543210")

	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	assert.Equal(t, "9876543210", *a)
	assert.Equal(t, *a, *b)
	assert.Equal(t, *b, *c)
}

func TestMobile(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want *string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "blank", raw: "   \t", want: nil},
		{name: "only zeros", raw: "000", want: nil},
		{name: "only separators", raw: "+ - -", want: nil},
		{name: "short number kept", raw: "12345", want: strPtr("12345")},
		{name: "country code truncated", raw: "+1 555 010 9999", want: strPtr("5550109999")},
		{name: "long digits truncated", raw: "00441234567890", want: strPtr("1234567890")},
		{name: "garbage kept", raw: "abc", want: strPtr("abc")},
		{name: "surrounding whitespace", raw: "  98765 43210  ", want: strPtr("9876543210")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Mobile(tc.raw)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{name: "utc designator", raw: "2024-03-15T10:30:00Z", want: &want},
		{name: "positive offset", raw: "2024-03-15T16:00:00+05:30", want: &want},
		{name: "negative offset", raw: "2024-03-15T05:30:00-05:00", want: &want},
		{name: "compact offset", raw: "2024-03-15T11:30:00+0100", want: &want},
		{name: "naive assumed utc", raw: "2024-03-15T10:30:00", want: &want},
		{name: "space separator", raw: "2024-03-15 10:30:00", want: &want},
		{name: "fractional seconds", raw: "2024-03-15T10:30:00.000Z", want: &want},
		{name: "no seconds", raw: "2024-03-15T10:30", want: &want},
		{name: "empty", raw: "", want: nil},
		{name: "garbage", raw: "not-a-date", want: nil},
		{name: "impossible date", raw: "2024-13-45T10:30:00", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Timestamp(tc.raw)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestTimestampDateOnly(t *testing.T) {
	got := Timestamp("2024-03-15")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *got)
}

func TestTimestampOrderingAcrossOffsets(t *testing.T) {
	earlier := Timestamp("2024-03-15T10:00:00+05:30")
	later := Timestamp("2024-03-15T05:00:00Z")

	require.NotNil(t, earlier)
	require.NotNil(t, later)
	assert.True(t, earlier.Before(*later))
}

func TestAmount(t *testing.T) {
	got, ok := Amount("1499.50")
	assert.True(t, ok)
	assert.True(t, decimal.RequireFromString("1499.5").Equal(got))

	got, ok = Amount("  ")
	assert.True(t, ok)
	assert.True(t, got.IsZero())

	got, ok = Amount("12,00")
	assert.False(t, ok)
	assert.True(t, got.IsZero())
}

func TestCount(t *testing.T) {
	n, err := Count("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = Count("2.0")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = Count("-1")
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = Count("1.5")
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = Count("many")
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func strPtr(v string) *string {
	return &v
}
