package model

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// AssetKind classifies an asset job. The protocol core does not interpret
// it; the worker script does.
type AssetKind string

const (
	AssetKindModel    AssetKind = "model"
	AssetKindMaterial AssetKind = "material"
	AssetKindTexture  AssetKind = "texture"
	AssetKindScene    AssetKind = "scene"
)

// AssetParams are job execution parameters passed through opaquely.
type AssetParams struct {
	Resolution string `json:"resolution,omitempty"`
	Detail     string `json:"detail,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// AssetJob is one synchronization job, one per catalog asset.
type AssetJob struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Kind       AssetKind   `json:"kind"`
	SourcePath string      `json:"source_path"`
	Params     AssetParams `json:"params"`
}

// Data returns the job identity mapping carried in an ASSET command.
func (j AssetJob) Data() map[string]any {
	return map[string]any{
		"id":          j.ID.String(),
		"name":        j.Name,
		"kind":        string(j.Kind),
		"source_path": j.SourcePath,
	}
}

// ParamsMap returns the execution parameter mapping carried in an ASSET
// command. Zero fields are omitted.
func (j AssetJob) ParamsMap() map[string]any {
	m := make(map[string]any, 3)
	if j.Params.Resolution != "" {
		m["resolution"] = j.Params.Resolution
	}
	if j.Params.Detail != "" {
		m["detail"] = j.Params.Detail
	}
	if j.Params.OutputPath != "" {
		m["output_path"] = j.Params.OutputPath
	}
	return m
}

// Catalog is the JSON asset list fed to the sync command.
type Catalog struct {
	Assets []AssetJob `json:"assets"`
}

// LoadCatalog decodes a catalog and assigns IDs to entries missing one.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decoding catalog: %w", err)
	}
	for i := range c.Assets {
		if c.Assets[i].Name == "" {
			return Catalog{}, fmt.Errorf("catalog asset %d: name is empty", i)
		}
		if c.Assets[i].ID == uuid.Nil {
			c.Assets[i].ID = uuid.New()
		}
	}
	return c, nil
}
