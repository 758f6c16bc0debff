package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/service"
	"alcyxob/fittrack/internal/volume"
)

// WorkoutHandler serves workout history, saving and the volume statistics.
type WorkoutHandler struct {
	workoutService service.WorkoutService
	now            func() time.Time
}

func NewWorkoutHandler(workoutService service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService, now: time.Now}
}

// SaveWorkoutBody is the JSON accepted by POST /workouts. The exercises come from the draft.
type SaveWorkoutBody struct {
	WorkoutDate string `json:"workoutDate"` // 2006-01-02 or RFC 3339, defaults to today
	Name        string `json:"name" binding:"max=120"`
	Notes       string `json:"notes" binding:"max=2000"`
}

// ListWorkouts godoc
// @Summary One page of workout history, newest first
// @Tags Workouts
// @Security BearerAuth
// @Produce json
// @Param page query int false "Zero-based page index"
// @Success 200 {object} service.Page
// @Router /workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	pageIndex, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || pageIndex < 0 {
		abortWithError(c, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}

	page, err := h.workoutService.ListPage(c.Request.Context(), userID, pageIndex)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// SaveWorkout godoc
// @Summary Save the current draft as a workout
// @Tags Workouts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param workout body SaveWorkoutBody false "Workout details"
// @Success 201 {object} domain.WorkoutSummary
// @Failure 400 {object} gin.H "Draft is empty or has an invalid set"
// @Failure 502 {object} gin.H "Store rejected the write"
// @Router /workouts [post]
func (h *WorkoutHandler) SaveWorkout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var body SaveWorkoutBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
			return
		}
	}
	workoutDate, err := parseWorkoutDate(body.WorkoutDate)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.workoutService.SaveWorkout(c.Request.Context(), userID, service.SaveWorkoutRequest{
		WorkoutDate: workoutDate,
		Name:        body.Name,
		Notes:       body.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, summary)
}

// DeleteWorkout godoc
// @Summary Delete a saved workout
// @Tags Workouts
// @Security BearerAuth
// @Param id path string true "Workout ID"
// @Success 204
// @Failure 409 {object} gin.H "Workout is still being saved"
// @Router /workouts/{id} [delete]
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	if err := h.workoutService.DeleteWorkout(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Volume godoc
// @Summary Training volume bucketed by day, week or month
// @Tags Stats
// @Security BearerAuth
// @Produce json
// @Param range query string false "7days, 8weeks or 12months" default(7days)
// @Success 200 {array} volume.Bucket
// @Router /stats/volume [get]
func (h *WorkoutHandler) Volume(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	r, err := volume.ParseRange(c.DefaultQuery("range", string(volume.Range7Days)))
	if err != nil {
		respondError(c, err)
		return
	}

	buckets, err := h.workoutService.Volume(c.Request.Context(), userID, r, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, buckets)
}

func parseWorkoutDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "workoutDate", Message: "expected YYYY-MM-DD or an RFC 3339 timestamp"}
	}
	return t, nil
}
