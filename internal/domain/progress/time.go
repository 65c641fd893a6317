package progress

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Time is a timestamp that tolerates the encodings found in stored documents:
// RFC 3339 strings, epoch milliseconds and {seconds, nanoseconds} objects.
type Time struct {
	time.Time
}

func At(t time.Time) *Time { return &Time{Time: t} }

// Millis returns epoch milliseconds, or 0 for a nil or zero Time.
func (t *Time) Millis() int64 {
	if t == nil || t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, ok := ParseTime(raw)
	if !ok {
		// Unknown encodings decode as zero rather than failing the document.
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}

// ParseTime converts a loosely typed document value into a time.
func ParseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case Time:
		return x.Time, !x.IsZero()
	case *Time:
		if x == nil {
			return time.Time{}, false
		}
		return x.Time, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
		return time.Time{}, false
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return millisTime(f)
	case float64:
		return millisTime(x)
	case float32:
		return millisTime(float64(x))
	case int:
		return millisTime(float64(x))
	case int64:
		return millisTime(float64(x))
	case map[string]any:
		sec, okSec := numberOf(x["seconds"])
		if !okSec {
			sec, okSec = numberOf(x["_seconds"])
		}
		if !okSec {
			return time.Time{}, false
		}
		nanos, _ := numberOf(x["nanoseconds"])
		if nanos == 0 {
			nanos, _ = numberOf(x["_nanoseconds"])
		}
		return time.Unix(int64(sec), int64(nanos)), true
	default:
		return time.Time{}, false
	}
}

// MillisOf is ParseTime reduced to epoch milliseconds (0 when unknown).
func MillisOf(v any) int64 {
	ts, ok := ParseTime(v)
	if !ok {
		return 0
	}
	return ts.UnixMilli()
}

func millisTime(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)), true
}

func numberOf(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// DayKey renders the per-day document key used by daily histories (dYYYYMMDD).
func DayKey(t time.Time) string {
	return "d" + t.Format("20060102")
}
