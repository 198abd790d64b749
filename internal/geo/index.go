// Package geo resolves stop names to coordinates using a reference index
// built once per run.
package geo

import (
	"github.com/busgeo/route-geocoder/internal/models"
)

// Index maps trimmed stop names to coordinates. It is read-only after Build
// and safe to share between goroutines.
type Index struct {
	coords     map[string]models.Coordinate
	dropped    int
	duplicates int
}

// Build constructs an index from raw reference entries. Entries without a
// usable name are dropped; for repeated names the last entry wins.
func Build(entries []models.ReferenceEntry) *Index {
	idx := &Index{coords: make(map[string]models.Coordinate, len(entries))}
	for _, e := range entries {
		name := models.NormalizeName(e.Name)
		if name == "" {
			idx.dropped++
			continue
		}
		if _, seen := idx.coords[name]; seen {
			idx.duplicates++
		}
		idx.coords[name] = models.Coordinate{Lat: copyFloat(e.Lat), Lon: copyFloat(e.Lon)}
	}
	return idx
}

// Lookup returns the coordinate stored for name after trimming it.
func (i *Index) Lookup(name string) (models.Coordinate, bool) {
	if i == nil {
		return models.Coordinate{}, false
	}
	c, ok := i.coords[models.NormalizeName(name)]
	if !ok {
		return models.Coordinate{}, false
	}
	return models.Coordinate{Lat: copyFloat(c.Lat), Lon: copyFloat(c.Lon)}, true
}

// Len reports the number of distinct names in the index.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.coords)
}

// Dropped reports how many entries were skipped for a missing name.
func (i *Index) Dropped() int {
	if i == nil {
		return 0
	}
	return i.dropped
}

// Duplicates reports how many entries overwrote an earlier one.
func (i *Index) Duplicates() int {
	if i == nil {
		return 0
	}
	return i.duplicates
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}
