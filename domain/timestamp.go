package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// string forms accepted for sentAt; the zoneless ones are Spring's LocalDateTime
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp holds sentAt exactly as it travelled: an ISO-8601 string, epoch
// milliseconds, or a Jackson LocalDateTime array [y,m,d,h,min,s,nanos].
type Timestamp struct {
	raw json.RawMessage
}

func NewTimestamp(t time.Time) Timestamp {
	b, _ := json.Marshal(FormatTimestamp(t))
	return Timestamp{raw: b}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if len(ts.raw) == 0 {
		return []byte("null"), nil
	}
	return ts.raw, nil
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		ts.raw = nil
		return nil
	}
	ts.raw = append(json.RawMessage(nil), b...)
	return nil
}

// String is the ISO text for string timestamps and the raw JSON otherwise.
func (ts Timestamp) String() string {
	var s string
	if err := json.Unmarshal(ts.raw, &s); err == nil {
		return s
	}
	return string(ts.raw)
}

// Time interprets the timestamp; zoneless forms are taken as UTC.
func (ts Timestamp) Time() time.Time {
	if len(ts.raw) == 0 {
		return time.Time{}
	}
	switch ts.raw[0] {
	case '"':
		s := ts.String()
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	case '[':
		var parts []int
		if err := json.Unmarshal(ts.raw, &parts); err != nil || len(parts) < 3 {
			return time.Time{}
		}
		parts = append(parts, 0, 0, 0, 0)
		return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
	default:
		var n float64
		if err := json.Unmarshal(ts.raw, &n); err != nil {
			return time.Time{}
		}
		// epoch seconds or epoch milliseconds
		if n < 1e11 {
			return time.UnixMilli(int64(n * 1000)).UTC()
		}
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Time{}
}
