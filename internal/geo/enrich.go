package geo

import (
	"sort"

	"github.com/busgeo/route-geocoder/internal/models"
)

// MissFunc receives the position and normalized name of a stop that has no
// reference entry.
type MissFunc func(position int, name string)

// Enrich pairs every name with its coordinate from idx, keeping order and
// length. Unresolved names get null coordinates and are reported to onMiss,
// which may be nil.
func Enrich(names []string, idx *Index, onMiss MissFunc) []models.EnrichedStop {
	out := make([]models.EnrichedStop, 0, len(names))
	for pos, raw := range names {
		name := models.NormalizeName(raw)
		coord, ok := idx.Lookup(name)
		if !ok {
			if onMiss != nil {
				onMiss(pos, name)
			}
			out = append(out, models.EnrichedStop{Name: name})
			continue
		}
		out = append(out, models.EnrichedStop{Name: name, Lat: coord.Lat, Lon: coord.Lon})
	}
	return out
}

// Miss records one unresolved stop.
type Miss struct {
	RecordID int64  `json:"record_id"`
	Position int    `json:"position"`
	Name     string `json:"name"`
}

// NameCount is the number of misses for one distinct stop name.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Diagnostics accumulates misses across a run. The zero value is ready to use.
type Diagnostics struct {
	misses []Miss
}

// Record appends a miss.
func (d *Diagnostics) Record(m Miss) {
	d.misses = append(d.misses, m)
}

// ForRecord returns a MissFunc that records misses against recordID.
func (d *Diagnostics) ForRecord(recordID int64) MissFunc {
	return func(position int, name string) {
		d.Record(Miss{RecordID: recordID, Position: position, Name: name})
	}
}

// Len returns the total number of misses.
func (d *Diagnostics) Len() int {
	return len(d.misses)
}

// Misses returns a copy of the recorded misses in recording order.
func (d *Diagnostics) Misses() []Miss {
	out := make([]Miss, len(d.misses))
	copy(out, d.misses)
	return out
}

// ByName groups misses by stop name, most frequent first, then by name.
func (d *Diagnostics) ByName() []NameCount {
	counts := make(map[string]int)
	for _, m := range d.misses {
		counts[m.Name]++
	}
	out := make([]NameCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NameCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
