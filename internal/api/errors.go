package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/service"
)

// respond writes the success envelope.
func respond(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"data": data})
}

// respondError maps a service error onto a status code and the error envelope.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		authErr       *domain.AuthError
		partialErr    *domain.PartialWriteError
		remoteErr     *domain.RemoteError
	)

	switch {
	case errors.As(err, &validationErr):
		abortWithError(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &authErr) && authErr.Kind == domain.AuthUnconfirmedEmail:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": authErr.Error(), "code": string(authErr.Kind)})
	case errors.As(err, &authErr):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authErr.Error(), "code": string(authErr.Kind)})
	case errors.Is(err, service.ErrUserAlreadyExists):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrExerciseAccessDenied):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrExerciseNotFound), errors.Is(err, service.ErrUploadNotFound), domain.IsNotFound(err):
		abortWithError(c, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, service.ErrWorkoutPending):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrIndexOutOfRange):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &partialErr):
		log.Errorf("api: %s %s: %s", c.Request.Method, c.Request.URL.Path, partialErr)
		abortWithError(c, http.StatusBadGateway, partialErr.Error())
	case errors.Is(err, domain.ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusGatewayTimeout, "the data store did not answer in time")
	case errors.As(err, &remoteErr):
		log.Warnf("api: %s %s: remote %s: %s", c.Request.Method, c.Request.URL.Path, remoteErr.Op, remoteErr.Message)
		abortWithError(c, http.StatusBadGateway, remoteErr.Message)
	default:
		log.Errorf("api: %s %s: %s", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func notFoundMessage(err error) string {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) {
		return fmt.Sprintf("%s: not found", remoteErr.Op)
	}
	return err.Error()
}
