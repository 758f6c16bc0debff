package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fittrack/internal/repository"
	"alcyxob/fittrack/internal/service"
)

// CatalogHandler serves equipment and the exercise library.
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListEquipment godoc
// @Summary List equipment
// @Tags Catalog
// @Security BearerAuth
// @Produce json
// @Success 200 {array} domain.Equipment
// @Router /equipment [get]
func (h *CatalogHandler) ListEquipment(c *gin.Context) {
	equipment, err := h.catalogService.ListEquipment(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, equipment)
}

// ListExercises godoc
// @Summary List predefined exercises plus the caller's own
// @Tags Catalog
// @Security BearerAuth
// @Produce json
// @Param category query string false "Category"
// @Param muscle query string false "Primary muscle"
// @Param equipment query string false "Equipment ID"
// @Param q query string false "Case-insensitive name search"
// @Success 200 {array} domain.Exercise
// @Router /exercises [get]
func (h *CatalogHandler) ListExercises(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	filter := repository.ExerciseFilter{
		Category:      c.Query("category"),
		PrimaryMuscle: c.Query("muscle"),
		Search:        c.Query("q"),
	}
	if raw := c.Query("equipment"); raw != "" {
		equipmentID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid equipment ID format")
			return
		}
		filter.EquipmentID = &equipmentID
	}

	exercises, err := h.catalogService.ListExercises(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, exercises)
}

// GetExercise godoc
// @Summary Get one exercise
// @Tags Catalog
// @Security BearerAuth
// @Produce json
// @Param id path string true "Exercise ID"
// @Success 200 {object} domain.Exercise
// @Failure 404 {object} gin.H "Not found"
// @Router /exercises/{id} [get]
func (h *CatalogHandler) GetExercise(c *gin.Context) {
	userID, exerciseID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}
	exercise, err := h.catalogService.GetExercise(c.Request.Context(), userID, exerciseID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, exercise)
}

// CreateExercise godoc
// @Summary Create a user exercise
// @Tags Catalog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param exercise body service.ExerciseInput true "Exercise"
// @Success 201 {object} domain.Exercise
// @Failure 400 {object} gin.H "Invalid input"
// @Router /exercises [post]
func (h *CatalogHandler) CreateExercise(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var req service.ExerciseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	exercise, err := h.catalogService.CreateExercise(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, exercise)
}

// UpdateExercise godoc
// @Summary Update one of the caller's exercises
// @Tags Catalog
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Exercise ID"
// @Param exercise body service.ExerciseInput true "Exercise"
// @Success 200 {object} domain.Exercise
// @Failure 403 {object} gin.H "Predefined or foreign exercise"
// @Router /exercises/{id} [put]
func (h *CatalogHandler) UpdateExercise(c *gin.Context) {
	userID, exerciseID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}
	var req service.ExerciseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	exercise, err := h.catalogService.UpdateExercise(c.Request.Context(), userID, exerciseID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, exercise)
}

// DeleteExercise godoc
// @Summary Delete one of the caller's exercises
// @Tags Catalog
// @Security BearerAuth
// @Param id path string true "Exercise ID"
// @Success 204
// @Router /exercises/{id} [delete]
func (h *CatalogHandler) DeleteExercise(c *gin.Context) {
	userID, exerciseID, ok := userAndPathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteExercise(c.Request.Context(), userID, exerciseID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// userAndPathID reads the caller and an ObjectID path parameter, aborting on failure.
func userAndPathID(c *gin.Context, param string) (userID, id primitive.ObjectID, ok bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return userID, id, false
	}
	id, err = primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid ID format")
		return userID, id, false
	}
	return userID, id, true
}
