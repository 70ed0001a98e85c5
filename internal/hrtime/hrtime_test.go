package hrtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

func TestDecode_Absent(t *testing.T) {
	for _, in := range []any{nil, "", "0", int64(0), "00000000000000", Sentinel, []byte(Sentinel), " 0 "} {
		got, err := Decode(in)
		require.NoError(t, err, "input %#v", in)
		assert.Nil(t, got, "input %#v", in)
	}
}

func TestDecode_Valid(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want time.Time
		iso  string
	}{
		{
			name: "17 digits zero millis",
			in:   "20230209084334000",
			want: time.Date(2023, 2, 9, 8, 43, 34, 0, time.UTC),
			iso:  "2023-02-09T08:43:34Z",
		},
		{
			name: "17 digits with millis",
			in:   int64(20230209090257123),
			want: time.Date(2023, 2, 9, 9, 2, 57, 123_000_000, time.UTC),
			iso:  "2023-02-09T09:02:57.123Z",
		},
		{
			name: "14 digits",
			in:   []byte("20230209090257"),
			want: time.Date(2023, 2, 9, 9, 2, 57, 0, time.UTC),
			iso:  "2023-02-09T09:02:57Z",
		},
		{
			name: "one millisecond after epoch",
			in:   "19700101000000001",
			want: time.Unix(0, int64(time.Millisecond)).UTC(),
			iso:  "1970-01-01T00:00:00.001Z",
		},
		{
			name: "leap day",
			in:   uint64(20240229235959999),
			want: time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC),
			iso:  "2024-02-29T23:59:59.999Z",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.in)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
			assert.Equal(t, tc.iso, Format(*got))
		})
	}
}

func TestDecode_FormatErrors(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{name: "month 13", in: "20231301000000000"},
		{name: "hour 25", in: "20230101250000000"},
		{name: "feb 30", in: "20230230000000"},
		{name: "minute 60", in: "20230101006000"},
		{name: "too short", in: "2023010100000"},
		{name: "15 digits", in: "202301010000000"},
		{name: "too long", in: "202301010000000000"},
		{name: "letters", in: "2023-01-01T00:00"},
		{name: "negative", in: int64(-20230101000000)},
		{name: "fractional float", in: 2.5},
		{name: "unsupported type", in: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.in)
			require.Error(t, err)
			assert.Nil(t, got)
			var fe *errs.FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestDecode_MonthOutOfRangeReason(t *testing.T) {
	_, err := Decode("20231301000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "month out of range")
}

func TestEncodeFromISO(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{in: "2023-02-09T00:00:00Z", want: 20230209000000000},
		{in: "2023-02-09T08:43:34.5Z", want: 20230209084334500},
		{in: "2023-02-09T08:43:34.123Z", want: 20230209084334123},
		{in: "2023-12-31T23:59:59.9996Z", want: 20240101000000000},
	}
	for _, tc := range cases {
		got, err := EncodeFromISO(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestEncodeFromISO_RequiresZulu(t *testing.T) {
	for _, in := range []string{"2023-02-09T00:00:00+02:00", "2023-02-09T00:00:00", "2023-02-09", "garbageZ"} {
		_, err := EncodeFromISO(in)
		var fe *errs.FormatError
		assert.ErrorAs(t, err, &fe, in)
	}
}

func TestRoundTrip_PreservesInstant(t *testing.T) {
	for _, raw := range []string{"20230209084334000", "20230209084334123", "19991231235959", "20000101000000001"} {
		decoded, err := Decode(raw)
		require.NoError(t, err)
		require.NotNil(t, decoded)

		packed, err := EncodeFromISO(Format(*decoded))
		require.NoError(t, err)

		again, err := Decode(packed)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.True(t, decoded.Equal(*again), "raw %s: %s != %s", raw, decoded, again)
	}
}
