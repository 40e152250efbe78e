package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		provider   *mockWorkflowProvider
		wantStatus int
		wantBody   string
	}{
		{name: "workflow loaded", provider: &mockWorkflowProvider{workflow: newTestWorkflow(t)}, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "no workflow", provider: &mockWorkflowProvider{}, wantStatus: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.provider)
			h.now = func() time.Time { return h.started.Add(90*time.Second + 300*time.Millisecond) }

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, tt.provider.workflow != nil, resp.Workflow)
			assert.Equal(t, "1m30s", resp.Uptime)
			assert.NotEmpty(t, resp.Version)
		})
	}
}
