package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/fittrack/internal/draft"
	"alcyxob/fittrack/internal/service"
)

// DraftHandler exposes the in-progress workout editor.
type DraftHandler struct {
	draftService service.DraftService
}

func NewDraftHandler(draftService service.DraftService) *DraftHandler {
	return &DraftHandler{draftService: draftService}
}

// GetDraft godoc
// @Summary The workout being edited
// @Tags Workouts
// @Security BearerAuth
// @Produce json
// @Success 200 {object} draft.State
// @Router /workouts/draft [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	state, err := h.draftService.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, state)
}

// Dispatch godoc
// @Summary Apply one editor action to the draft
// @Tags Workouts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param action body draft.Action true "Action"
// @Success 200 {object} draft.State
// @Failure 400 {object} gin.H "Unknown action or index out of range"
// @Router /workouts/draft/actions [post]
func (h *DraftHandler) Dispatch(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var action draft.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	state, err := h.draftService.Dispatch(c.Request.Context(), userID, action)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, state)
}

// DiscardDraft godoc
// @Summary Throw the draft away
// @Tags Workouts
// @Security BearerAuth
// @Success 204
// @Router /workouts/draft [delete]
func (h *DraftHandler) DiscardDraft(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	if err := h.draftService.Discard(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
