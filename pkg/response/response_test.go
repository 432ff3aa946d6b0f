package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	PayloadTooLarge(c, "image too large")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.EqualError(t, resp.Err(), "PAYLOAD_TOO_LARGE: image too large")
}

func TestSuccessEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Created(c, gin.H{"id": "m1"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NoError(t, resp.Err())
}

func TestCodeFor(t *testing.T) {
	require.Equal(t, "CONFLICT", CodeFor(http.StatusConflict))
	require.Equal(t, "INTERNAL_ERROR", CodeFor(http.StatusInternalServerError))
	require.Equal(t, "INTERNAL_ERROR", CodeFor(http.StatusTeapot))
}
