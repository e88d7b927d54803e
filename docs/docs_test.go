package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerInfo_RendersValidDocument(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Host     string                     `json:"host"`
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, SwaggerInfo.Host, doc.Host)
	assert.Equal(t, "/api", doc.BasePath)
	for _, path := range []string{"/login", "/signup", "/forgotPassword", "/resetPassword/{token}", "/me", "/users/{id}/password", "/sessions"} {
		assert.Contains(t, doc.Paths, path)
	}
}
