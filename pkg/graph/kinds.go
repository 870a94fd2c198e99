package graph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is a declared property kind. Kinds select the canonical internal
// representation a raw cell value is coerced to before it reaches the store.
type Kind string

const (
	KindString    Kind = "string"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindDatetime  Kind = "datetime"
	KindDate      Kind = "date"
	KindValidFrom Kind = "validFrom"
	KindValidTo   Kind = "validTo"
	KindLatitude  Kind = "location.lat"
	KindLongitude Kind = "location.lon"
	KindGeometry  Kind = "geometry"
)

// ParseKind validates a kind tag from configuration.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	switch k {
	case KindString, KindInt, KindFloat, KindDatetime, KindDate,
		KindValidFrom, KindValidTo, KindLatitude, KindLongitude, KindGeometry:
		return k, nil
	}
	return "", fmt.Errorf("unknown property kind: %q", s)
}

// Temporal reports whether values of this kind coerce to timestamps.
func (k Kind) Temporal() bool {
	switch k {
	case KindDatetime, KindDate, KindValidFrom, KindValidTo:
		return true
	}
	return false
}

// Coerce converts a raw cell value to the canonical representation for k.
//
// Whole-number floats targeting an int field are demoted back to int64 (the
// upstream tabular layer promotes int columns with missing values to float).
// Datetime kinds accept epoch milliseconds or a small set of string layouts.
// Geometry values must already be WKT strings; the conversion itself is a
// collaborator concern handled before coercion.
func Coerce(k Kind, value any) (any, error) {
	switch k {
	case KindString:
		return coerceString(value)
	case KindInt:
		return coerceInt(value)
	case KindFloat, KindLatitude, KindLongitude:
		return coerceFloat(value)
	case KindDatetime, KindDate, KindValidFrom, KindValidTo:
		return coerceTime(value)
	case KindGeometry:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("geometry value must be a WKT string, got %T", value)
	}
	return nil, fmt.Errorf("unknown property kind: %q", string(k))
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return formatFloat(v), nil
	case float32:
		return formatFloat(float64(v)), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("cannot coerce %T to string", value)
}

func coerceInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("cannot coerce %v to int", v)
		}
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("cannot coerce non-whole float %v to int", v)
		}
		return int64(v), nil
	case float32:
		return coerceInt(float64(v))
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return coerceInt(f)
		}
		return 0, fmt.Errorf("cannot coerce %q to int", v)
	}
	return 0, fmt.Errorf("cannot coerce %T to int", value)
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, fmt.Errorf("cannot coerce NaN to float")
		}
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to float", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot coerce %T to float", value)
}

// coerceTime accepts epoch milliseconds (the tabular input convention) or a
// handful of common string layouts, always normalized to UTC.
func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, fmt.Errorf("cannot coerce %v to timestamp", v)
		}
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		return parseTimeString(v)
	}
	return time.Time{}, fmt.Errorf("cannot coerce %T to timestamp", value)
}

func parseTimeString(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", raw)
}

// FormatID renders a cell value as a canonical node id string. Whole floats
// render without a decimal part so a promoted int column still keys the same
// node. The second return is false for missing values (nil, NaN, blank).
func FormatID(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return formatFloat(v), true
	case float32:
		return FormatID(float64(v))
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return fmt.Sprintf("%v", value), true
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
