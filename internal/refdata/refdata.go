// Package refdata loads the stop reference list from a local JSON or YAML
// file, or from a JSON document served over HTTP.
package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/busgeo/route-geocoder/internal/models"
)

// ErrNotList is returned when the document's top level is not a list.
var ErrNotList = errors.New("reference data must be a list of { name, lat, lon }")

// Source loads reference entries.
type Source interface {
	Load(ctx context.Context) ([]models.ReferenceEntry, error)
}

// New returns a Source for location, which is either an http(s) URL or a
// file path.
func New(location string, client *http.Client) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		return &HTTPSource{URL: location, Client: client}
	}
	return &FileSource{Path: location}
}

// FileSource reads a .json, .yaml or .yml file.
type FileSource struct {
	Path string
}

// Load reads and decodes the file.
func (s *FileSource) Load(_ context.Context) ([]models.ReferenceEntry, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", s.Path)
		}
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		return DecodeYAML(raw)
	default:
		return DecodeJSON(raw)
	}
}

// HTTPSource fetches a JSON document.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Load retrieves and decodes the document.
func (s *HTTPSource) Load(ctx context.Context) ([]models.ReferenceEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request reference data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	return DecodeJSON(raw)
}

// DecodeJSON decodes a JSON array of reference items.
func DecodeJSON(raw []byte) ([]models.ReferenceEntry, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return fromDocument(doc)
}

// DecodeYAML decodes a YAML sequence of reference items.
func DecodeYAML(raw []byte) ([]models.ReferenceEntry, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return fromDocument(doc)
}

// fromDocument converts a decoded document into entries. Items that are not
// objects or have a non-string name get an empty name so the index drops
// them; non-numeric coordinates become null.
func fromDocument(doc any) ([]models.ReferenceEntry, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, ErrNotList
	}

	entries := make([]models.ReferenceEntry, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			entries = append(entries, models.ReferenceEntry{})
			continue
		}
		name, _ := obj["name"].(string)
		entries = append(entries, models.ReferenceEntry{
			Name: name,
			Lat:  number(obj["lat"]),
			Lon:  number(obj["lon"]),
		})
	}
	return entries, nil
}

func number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
