package models

import (
	"fmt"
	"strings"
)

// ReferenceEntry is one named location read from the reference data file.
type ReferenceEntry struct {
	Name string   `json:"name" yaml:"name"`
	Lat  *float64 `json:"lat" yaml:"lat"`
	Lon  *float64 `json:"lon" yaml:"lon"`
}

// Coordinate is a lat/lon pair where either side may be unknown.
type Coordinate struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// StoredRecord is a row read back from the records table. Names holds the
// decoded column value as returned by the driver and is only enriched when it
// is a list.
type StoredRecord struct {
	ID    int64
	Names any
}

// EnrichedStop pairs a stop name with its coordinate, null when unresolved.
type EnrichedStop struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

// EnrichedRecord is the unit written back to storage.
type EnrichedRecord struct {
	ID    int64          `json:"id"`
	Names []EnrichedStop `json:"names"`
}

// NameList extracts the ordered stop names from a stored names value.
// ok is false when the value is not a list.
func NameList(v any) (names []string, ok bool) {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, nameOf(item))
		}
		return out, true
	default:
		return nil, false
	}
}

// nameOf turns one list element into a raw name. Objects are stops written by
// a previous run and contribute their name field.
func nameOf(item any) string {
	switch v := item.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return name
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// NormalizeName trims surrounding whitespace; it is the identity key used for
// reference lookups.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
