package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/service"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: &domain.ValidationError{Field: "age", Message: "too old"}, status: http.StatusBadRequest, message: "age: too old"},
		{name: "unconfirmed", err: domain.ErrUnconfirmedEmail, status: http.StatusForbidden},
		{name: "expired", err: fmt.Errorf("refresh: %w", domain.ErrSessionExpired), status: http.StatusUnauthorized},
		{name: "duplicate user", err: service.ErrUserAlreadyExists, status: http.StatusConflict},
		{name: "access denied", err: service.ErrExerciseAccessDenied, status: http.StatusForbidden},
		{name: "exercise not found", err: service.ErrExerciseNotFound, status: http.StatusNotFound},
		{name: "remote not found", err: &domain.RemoteError{Op: "workouts.Delete", Message: "no rows", NotFound: true}, status: http.StatusNotFound, message: "workouts.Delete: not found"},
		{name: "pending", err: service.ErrWorkoutPending, status: http.StatusConflict},
		{name: "no storage", err: service.ErrStorageUnavailable, status: http.StatusServiceUnavailable},
		{name: "index", err: domain.ErrIndexOutOfRange, status: http.StatusBadRequest},
		{name: "timeout", err: domain.ErrTimedOut, status: http.StatusGatewayTimeout},
		{name: "deadline", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{
			name:   "partial write caused by a timeout",
			err:    &domain.PartialWriteError{WorkoutID: "w1", Step: "sets", Err: domain.ErrTimedOut},
			status: http.StatusBadGateway,
		},
		{name: "remote", err: &domain.RemoteError{Op: "profiles.Update", Message: "row level security violation"}, status: http.StatusBadGateway, message: "row level security violation"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, message: "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			assert.Equal(t, tt.status, rr.Code)
			assert.True(t, c.IsAborted())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}
