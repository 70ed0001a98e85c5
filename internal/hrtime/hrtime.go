// Package hrtime converts the "BigIntHumanReadable" timestamp encoding used by
// the TradeHistories table. Values are digit strings in UTC, either
// yyyyMMddHHmmss (14 digits) or yyyyMMddHHmmssSSS (17 digits).
package hrtime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

// Sentinel is the 17-digit "not set" marker (epoch with zero millis).
const Sentinel = "19700101000000000"

const (
	baseLayout   = "20060102150405"
	isoLayout    = "2006-01-02T15:04:05Z"
	isoLayoutMs  = "2006-01-02T15:04:05.000Z"
	shortDigits  = 14
	packedDigits = 17
)

// Decode parses a packed timestamp. It returns (nil, nil) for absent values:
// SQL NULL, the empty string, numeric zero and Sentinel.
func Decode(raw any) (*time.Time, error) {
	s, err := digitsOf(raw)
	if err != nil {
		return nil, err
	}
	if s == "" || s == Sentinel || strings.Trim(s, "0") == "" {
		return nil, nil
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, &errs.FormatError{Value: s, Reason: "non-digit character"}
		}
	}
	if len(s) != shortDigits && len(s) != packedDigits {
		return nil, &errs.FormatError{Value: s, Reason: "length must be 14 or 17 digits, got " + strconv.Itoa(len(s))}
	}

	t, err := time.ParseInLocation(baseLayout, s[:shortDigits], time.UTC)
	if err != nil {
		return nil, &errs.FormatError{Value: s, Reason: calendarReason(err)}
	}
	if len(s) == packedDigits {
		ms, _ := strconv.Atoi(s[shortDigits:])
		t = t.Add(time.Duration(ms) * time.Millisecond)
	}
	return &t, nil
}

// Format renders t as ISO-8601 UTC, with milliseconds only when non-zero.
func Format(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Millisecond) != 0 {
		return t.Format(isoLayoutMs)
	}
	return t.Format(isoLayout)
}

// Encode packs t into the 17-digit form, rounded to the millisecond.
func Encode(t time.Time) int64 {
	t = t.UTC().Round(time.Millisecond)
	v := int64(t.Year())
	v = v*100 + int64(t.Month())
	v = v*100 + int64(t.Day())
	v = v*100 + int64(t.Hour())
	v = v*100 + int64(t.Minute())
	v = v*100 + int64(t.Second())
	return v*1000 + int64(t.Nanosecond()/int(time.Millisecond))
}

// EncodeFromISO parses an ISO-8601 UTC instant with a Z suffix and packs it.
func EncodeFromISO(iso string) (int64, error) {
	s := strings.TrimSpace(iso)
	if !strings.HasSuffix(s, "Z") {
		return 0, &errs.FormatError{Value: iso, Reason: "ISO-8601 value must be UTC with a Z suffix"}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, &errs.FormatError{Value: iso, Reason: err.Error()}
	}
	return Encode(t), nil
}

// digitsOf normalizes the driver value into its textual form.
func digitsOf(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case []byte:
		return strings.TrimSpace(string(v)), nil
	case int64:
		return signed(v)
	case int:
		return signed(int64(v))
	case int32:
		return signed(int64(v))
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		if v < 0 || v != math.Trunc(v) {
			return "", &errs.FormatError{Value: strconv.FormatFloat(v, 'g', -1, 64), Reason: "not a non-negative integer"}
		}
		return strconv.FormatFloat(v, 'f', 0, 64), nil
	default:
		return "", &errs.FormatError{Value: "", Reason: fmt.Sprintf("unsupported value type %T", raw)}
	}
}

func signed(v int64) (string, error) {
	if v < 0 {
		return "", &errs.FormatError{Value: strconv.FormatInt(v, 10), Reason: "negative value"}
	}
	return strconv.FormatInt(v, 10), nil
}

// calendarReason keeps the "month out of range" part of a time.ParseError.
func calendarReason(err error) string {
	var pe *time.ParseError
	if errors.As(err, &pe) && pe.Message != "" {
		return strings.TrimPrefix(pe.Message, ": ")
	}
	return err.Error()
}
