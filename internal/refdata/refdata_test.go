package refdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeJSON(t *testing.T) {
	entries, err := DecodeJSON([]byte(`[
		{"name": " Centro ", "lat": 6.2518, "lon": -75.5636},
		{"name": "Pendiente", "lat": null, "lon": null},
		{"name": "Texto", "lat": "6.1", "lon": "oeste"},
		{"lat": 1, "lon": 2},
		{"name": 12, "lat": 1, "lon": 2},
		null,
		"Suelto"
	]`))
	require.NoError(t, err)
	require.Len(t, entries, 7)

	assert.Equal(t, " Centro ", entries[0].Name)
	assert.InDelta(t, 6.2518, *entries[0].Lat, 1e-9)
	assert.InDelta(t, -75.5636, *entries[0].Lon, 1e-9)

	assert.Equal(t, "Pendiente", entries[1].Name)
	assert.Nil(t, entries[1].Lat)
	assert.Nil(t, entries[1].Lon)

	assert.InDelta(t, 6.1, *entries[2].Lat, 1e-9)
	assert.Nil(t, entries[2].Lon)

	for _, e := range entries[3:] {
		assert.Empty(t, e.Name)
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"name": "A"}`))
	assert.ErrorIs(t, err, ErrNotList)

	_, err = DecodeJSON([]byte(`[{"name": "A",`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDecodeYAML(t *testing.T) {
	entries, err := DecodeYAML([]byte(`
- name: Centro
  lat: 6
  lon: -75.5
- name: Sin coordenadas
`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 6.0, *entries[0].Lat)
	assert.Equal(t, -75.5, *entries[0].Lon)
	assert.Nil(t, entries[1].Lat)

	_, err = DecodeYAML([]byte("name: Centro\n"))
	assert.ErrorIs(t, err, ErrNotList)
}

func TestFileSource(t *testing.T) {
	jsonPath := writeFile(t, "stops.json", `[{"name":"A","lat":1,"lon":2}]`)
	yamlPath := writeFile(t, "stops.yml", "- name: B\n  lat: 3\n  lon: 4\n")

	entries, err := New(jsonPath, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Name)

	entries, err = New(yamlPath, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Name)
}

func TestFileSource_Missing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.json"), nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stops.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"name":"Estadio","lat":6.25,"lon":-75.59}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := New(srv.URL+"/stops.json", srv.Client())
	require.IsType(t, &HTTPSource{}, src)

	entries, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Estadio", entries[0].Name)

	_, err = New(srv.URL+"/missing.json", srv.Client()).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
