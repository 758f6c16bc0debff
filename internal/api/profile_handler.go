package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/fittrack/internal/domain"
	"alcyxob/fittrack/internal/service"
)

// ProfileHandler serves the caller's profile and avatar.
type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type AvatarUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type AvatarConfirmRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

// GetProfile godoc
// @Summary The caller's profile with lifetime totals
// @Tags Profile
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.ProfileView
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	profile, err := h.profileService.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Partially update the caller's profile
// @Tags Profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param update body domain.ProfileUpdate true "Fields to change"
// @Success 200 {object} service.ProfileView
// @Failure 400 {object} gin.H "Invalid input"
// @Router /profile [patch]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var update domain.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	profile, err := h.profileService.Update(c.Request.Context(), userID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// RequestAvatarUpload godoc
// @Summary Get a presigned URL to upload an avatar
// @Tags Profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body AvatarUploadRequest true "Image content type"
// @Success 200 {object} service.AvatarUpload
// @Failure 503 {object} gin.H "File storage not configured"
// @Router /profile/avatar [post]
func (h *ProfileHandler) RequestAvatarUpload(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var req AvatarUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	upload, err := h.profileService.AvatarUploadURL(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, upload)
}

// ConfirmAvatar godoc
// @Summary Attach an uploaded avatar to the profile
// @Tags Profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body AvatarConfirmRequest true "Key returned by the upload request"
// @Success 200 {object} service.ProfileView
// @Failure 404 {object} gin.H "Nothing uploaded under that key"
// @Router /profile/avatar [put]
func (h *ProfileHandler) ConfirmAvatar(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	var req AvatarConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	profile, err := h.profileService.ConfirmAvatar(c.Request.Context(), userID, req.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}
