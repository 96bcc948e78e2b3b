package stremio

import (
	"encoding/json"
)

// Manifest represents the Stremio addon manifest
type Manifest struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Resources   []string  `json:"resources"`
	Types       []string  `json:"types"`
	Catalogs    []Catalog `json:"catalogs"`
	IDPrefixes  []string  `json:"idPrefixes,omitempty"`
	Background  string    `json:"background,omitempty"`
	Logo        string    `json:"logo,omitempty"`
}

// Catalog represents a content catalog
type Catalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewManifest creates the addon manifest
func NewManifest(version string) *Manifest {
	return &Manifest{
		ID:          "community.streamtor",
		Version:     version,
		Name:        "StreamTor",
		Description: "Stream torrents instantly through your debrid provider",
		Resources:   []string{"stream"},
		Types:       []string{"movie", "series"},
		Catalogs:    []Catalog{},
		IDPrefixes:  []string{"tt"},
	}
}

// ToJSON converts manifest to JSON
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
