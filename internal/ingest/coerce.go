package ingest

import (
	"fmt"
	"strconv"
	"strings"

	berrors "github.com/AntonioDavid333/bestiary/internal/errors"
)

// stringValue extracts a non-empty trimmed string from a raw cell value.
func stringValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// parseMeasure coerces a unit-suffixed measurement cell (e.g. "6.9 kg") to a
// float. A missing or empty cell yields nil; a present but unparseable cell
// is a row-level parse error.
func parseMeasure(field string, v interface{}, unit string) (*float64, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &val, nil
	case int:
		f := float64(val)
		return &f, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		s = strings.TrimSpace(strings.TrimSuffix(s, unit))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, berrors.NewParseError(
				fmt.Sprintf("field %s: cannot parse %q as float", field, val))
		}
		return &f, nil
	default:
		return nil, berrors.NewParseError(
			fmt.Sprintf("field %s: unsupported value type %T", field, v))
	}
}

// parseInt coerces an integer cell from a numeric or string value. A missing
// or empty cell yields zero.
func parseInt(field string, v interface{}) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return val, nil
	case float64:
		return int(val), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, berrors.NewParseError(
				fmt.Sprintf("field %s: cannot parse %q as integer", field, val))
		}
		return n, nil
	default:
		return 0, berrors.NewParseError(
			fmt.Sprintf("field %s: unsupported value type %T", field, v))
	}
}

// parseList coerces a list cell from a real list or a comma-separated
// string, dropping empty elements.
func parseList(v interface{}) []string {
	var items []string
	switch val := v.(type) {
	case []string:
		items = val
	case []interface{}:
		for _, e := range val {
			if s, ok := e.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(val, ",")
	default:
		return nil
	}

	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitType splits a combined type tag ("Grass/Poison") into its primary and
// optional secondary components.
func splitType(combined string) (primary, secondary string) {
	parts := strings.SplitN(combined, "/", 2)
	primary = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		secondary = strings.TrimSpace(parts[1])
	}
	return primary, secondary
}
