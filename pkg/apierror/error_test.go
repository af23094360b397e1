package apierror

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSON(t *testing.T) {
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(NotFound("").ToJSON(), &body))

	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "Resource not found", body.Error.Message)
}

func TestServiceUnavailableCode(t *testing.T) {
	err := ServiceUnavailable("SIGNING_SECRET_MISSING", "no secret")
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode)
	assert.Equal(t, "SIGNING_SECRET_MISSING", err.Code)

	assert.Equal(t, "SERVICE_UNAVAILABLE", ServiceUnavailable("", "").Code)
}
