package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(t *testing.T, handler gin.HandlerFunc) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/api/responses/7", nil)
	handler(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestSuccessEnvelopes(t *testing.T) {
	status, body := render(t, func(c *gin.Context) { Success(c, gin.H{"status": "approved"}) })
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeOK, body.Code)
	assert.Equal(t, "ok", body.Message)
	assert.Equal(t, map[string]interface{}{"status": "approved"}, body.Data)

	status, body = render(t, func(c *gin.Context) { Created(c, gin.H{"id": 7}) })
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "created", body.Message)
}

func TestPartialCarriesCommittedState(t *testing.T) {
	status, body := render(t, func(c *gin.Context) {
		Partial(c, "regeneration failed", gin.H{"status": "rejected"})
	})
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, CodePartial, body.Code)
	assert.Equal(t, "regeneration failed", body.Message)
	assert.NotNil(t, body.Data)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{"bad request", NewBadRequest("rating must be between 1 and 5"), http.StatusBadRequest, 400, "rating must be between 1 and 5"},
		{"not found", NewNotFound("response not found"), http.StatusNotFound, 404, "response not found"},
		{"conflict", NewConflict("review already has an active response"), http.StatusConflict, 409, "review already has an active response"},
		{"invalid transition", NewInvalidTransition("cannot post a draft"), http.StatusConflict, CodeInvalidTransition, "cannot post a draft"},
		{"drafting", NewDraftingUnavailable("no model answered"), http.StatusBadGateway, CodeDraftingUnavailable, "no model answered"},
		{"wrapped", fmt.Errorf("approve: %w", NewForbidden("insufficient role")), http.StatusForbidden, 403, "insufficient role"},
		{"internal", errors.New("sql: database is closed"), http.StatusInternalServerError, 500, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := render(t, func(c *gin.Context) { Error(c, tt.err) })
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Nil(t, body.Data)
		})
	}
}

func TestAbortStopsChain(t *testing.T) {
	router := gin.New()
	reached := false
	router.GET("/limited",
		func(c *gin.Context) { Abort(c, NewRateLimited("slow down")) },
		func(c *gin.Context) { reached = true },
	)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/limited", nil)
	router.ServeHTTP(w, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeRateLimited, body.Code)
}

func TestShorthandHelpers(t *testing.T) {
	status, body := render(t, func(c *gin.Context) { BadRequest(c, "invalid id") })
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid id", body.Message)

	status, _ = render(t, func(c *gin.Context) { Unauthorized(c, "Invalid token") })
	assert.Equal(t, http.StatusUnauthorized, status)
}
