package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandForms(t *testing.T) {
	vars := map[string]string{"REGISTRY": "registry.internal", "TAG": "v2"}

	out, err := Expand("${REGISTRY}/app:$TAG", vars)
	assert.NoError(t, err)
	assert.Equal(t, "registry.internal/app:v2", out)

	out, err = Expand("${MISSING:-fallback}", vars)
	assert.NoError(t, err)
	assert.Equal(t, "fallback", out)

	out, err = Expand("${TAG:-v1}", vars)
	assert.NoError(t, err)
	assert.Equal(t, "v2", out)

	// Unknown plain references pass through untouched.
	out, err = Expand("${UNKNOWN} and $ALSO_UNKNOWN", vars)
	assert.NoError(t, err)
	assert.Equal(t, "${UNKNOWN} and $ALSO_UNKNOWN", out)
}

func TestExpandRequiredVariable(t *testing.T) {
	_, err := Expand("${DEPLOY_KEY:?deploy key must be set}", map[string]string{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DEPLOY_KEY")
	assert.Contains(t, err.Error(), "deploy key must be set")

	out, err := Expand("${DEPLOY_KEY:?unused}", map[string]string{"DEPLOY_KEY": "abc"})
	assert.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.env")
	content := `# deployment variables
REGISTRY=registry.internal
PASSWORD="s3cret"
EMPTY=
QUOTED='single'

malformed line without equals
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	layer, err := FileLayer(path)
	assert.NoError(t, err)
	assert.Equal(t, "registry.internal", layer["REGISTRY"])
	assert.Equal(t, "s3cret", layer["PASSWORD"])
	assert.Equal(t, "single", layer["QUOTED"])
	assert.Equal(t, "", layer["EMPTY"])
	assert.Len(t, layer, 4)
}

func TestFileLayerMissing(t *testing.T) {
	_, err := FileLayer(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestMergeLayersPrecedence(t *testing.T) {
	merged := MergeLayers(
		Layer{"A": "system", "B": "system"},
		Layer{"B": "file", "C": "file"},
		Layer{"C": "inline"},
	)
	assert.Equal(t, "system", merged["A"])
	assert.Equal(t, "file", merged["B"])
	assert.Equal(t, "inline", merged["C"])
}
