package model_test

import (
	"strings"
	"testing"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	raw := `{
  "assets": [
    {"name": "chair_v2", "kind": "model", "source_path": "/assets/chair.blend",
     "params": {"resolution": "2k", "output_path": "/out/chair"}},
    {"id": "0f8fad5b-d9cb-469f-a165-70867728950e", "name": "brick_wall", "kind": "material", "source_path": "/assets/brick.blend", "params": {}}
  ]
}`
	c, err := model.LoadCatalog(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, c.Assets, 2)

	first := c.Assets[0]
	require.NotEqual(t, uuid.Nil, first.ID, "missing id gets assigned")
	require.Equal(t, model.AssetKindModel, first.Kind)

	data := first.Data()
	require.Equal(t, "chair_v2", data["name"])
	require.Equal(t, "model", data["kind"])

	params := first.ParamsMap()
	require.Equal(t, "2k", params["resolution"])
	require.NotContains(t, params, "detail")

	second := c.Assets[1]
	require.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", second.ID.String())
	require.Empty(t, second.ParamsMap())
}

func TestLoadCatalogFail(t *testing.T) {
	t.Parallel()

	_, err := model.LoadCatalog(strings.NewReader(`{"assets": [{"kind": "model"}]}`))
	require.Error(t, err)

	_, err = model.LoadCatalog(strings.NewReader(`{"unknown": true}`))
	require.Error(t, err)
}
