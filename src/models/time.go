package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the storage form of every time value: UTC, millisecond
// precision, fixed width. Lexicographic order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

func init() {
	// Backups carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// NormalizeTime converts t to UTC and drops sub-millisecond precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Now returns the current time in storage precision.
func Now() time.Time {
	return NormalizeTime(time.Now())
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return NormalizeTime(t).Format(TimeLayout)
}

// ParseTime accepts TimeLayout, any RFC 3339 value, and a bare
// "YYYY-MM-DD" read as midnight UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return NormalizeTime(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeTime(t), nil
}

// NormalizeAmount rounds d to the nearest float64, the precision the
// relational backend stores. Every backend applies it so they agree.
func NormalizeAmount(d decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(d.InexactFloat64())
}

// decodeDate parses the JSON form of a transaction date. Null or an empty
// string leaves the zero time.
func decodeDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("date: %w", err)
	}
	if s == "" {
		return time.Time{}, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t, nil
}
