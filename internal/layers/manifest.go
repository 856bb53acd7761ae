// Package layers loads the administrative polygon layers (cities, districts,
// restricted areas) from shapefiles into the store. The engine only reads
// these tables; this package is the ingestion path.
package layers

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/trailworks/trailnet/internal/model"
)

// LayerSource describes where one polygon layer comes from and how to read
// its attribute table.
type LayerSource struct {
	Layer     model.Layer `yaml:"layer"`
	Source    string      `yaml:"source"`     // local .shp/.zip path, or http(s)/ftp URL of a zip archive
	CodeField string      `yaml:"code_field"` // DBF field holding the stable area code; optional
	NameField string      `yaml:"name_field"` // DBF field holding the display name
	Encoding  string      `yaml:"encoding"`   // "latin1" or "" (utf-8)
}

// Manifest lists the layer sources to import.
type Manifest struct {
	Layers []LayerSource `yaml:"layers"`
}

// LoadManifest reads and validates a layers.yaml manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "layers: parse manifest %s", path)
	}
	if len(m.Layers) == 0 {
		return nil, eris.Errorf("layers: manifest %s lists no layers", path)
	}
	seen := map[model.Layer]bool{}
	for i := range m.Layers {
		src := &m.Layers[i]
		if !validLayer(src.Layer) {
			return nil, eris.Errorf("layers: manifest entry %d: unknown layer %q", i, src.Layer)
		}
		if seen[src.Layer] {
			return nil, eris.Errorf("layers: manifest lists layer %q twice", src.Layer)
		}
		seen[src.Layer] = true
		if src.Source == "" {
			return nil, eris.Errorf("layers: manifest entry for %q has no source", src.Layer)
		}
		if src.NameField == "" {
			return nil, eris.Errorf("layers: manifest entry for %q has no name_field", src.Layer)
		}
		switch src.Encoding {
		case "", "utf-8", "utf8", "latin1", "iso-8859-1":
		default:
			return nil, eris.Errorf("layers: unsupported encoding %q for layer %q", src.Encoding, src.Layer)
		}
	}
	return &m, nil
}

func validLayer(layer model.Layer) bool {
	for _, l := range model.Layers() {
		if l == layer {
			return true
		}
	}
	return false
}
