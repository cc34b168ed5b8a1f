package profile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/pkg/request"
	"github.com/fkhayef/meetup/pkg/response"
)

// Handler handles HTTP requests for profile operations
type Handler struct {
	service *Service
}

// NewHandler creates a new profile handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for profile endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}", h.Upsert)
	r.Post("/{id}/availability", h.SetAvailability)
	r.Put("/{id}/presence", h.SetPresence)
	r.Put("/{id}/avatar", h.SetAvatar)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, request.ErrInvalidBody):
		response.BadRequest(w, err.Error())
	case errors.Is(err, request.ErrValidation):
		response.UnprocessableEntity(w, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrProfileNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidProfile), errors.Is(err, activity.ErrInvalidMood):
		response.UnprocessableEntity(w, "INVALID_PROFILE", err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// Upsert handles PUT /profiles/{id}
// @Summary      Create or update a profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body UpsertProfileRequest true "Profile fields"
// @Success      200 {object} response.APIResponse{data=ProfileResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /profiles/{id} [put]
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertProfileRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to save profile")
		return
	}

	p, err := h.service.Upsert(r.Context(), chi.URLParam(r, "id"), UpsertRequest{
		Name:             req.Name,
		Avatar:           req.Avatar,
		DateOfBirth:      req.DateOfBirth,
		MaxAgeDifference: req.MaxAgeDifference,
		Location:         req.Location,
	})
	if err != nil {
		writeError(w, err, "Failed to save profile")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse(h.service.Now()))
}

// GetByID handles GET /profiles/{id}
// @Summary      Get a profile
// @Tags         profiles
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=ProfileResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /profiles/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get profile")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse(h.service.Now()))
}

// List handles GET /profiles
// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]ProfileResponse}
// @Router       /profiles [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err, "Failed to list profiles")
		return
	}

	now := h.service.Now()
	out := make([]*ProfileResponse, len(profiles))
	for i, p := range profiles {
		out[i] = p.ToResponse(now)
	}

	response.JSONWithMeta(w, http.StatusOK, out, &response.Meta{Total: len(out)})
}

// SetAvailability handles POST /profiles/{id}/availability
// @Summary      Open or close the availability window
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body AvailabilityRequest true "Availability"
// @Success      200 {object} response.APIResponse{data=ProfileResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /profiles/{id}/availability [post]
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to update availability")
		return
	}

	var mood activity.Mood
	if req.Available {
		m, err := activity.ParseMood(req.Mood)
		if err != nil {
			writeError(w, err, "Failed to update availability")
			return
		}
		mood = m
	}

	p, err := h.service.SetAvailability(r.Context(), chi.URLParam(r, "id"), req.Available, mood)
	if err != nil {
		writeError(w, err, "Failed to update availability")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse(h.service.Now()))
}

// SetPresence handles PUT /profiles/{id}/presence
// @Summary      Update online status and position
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body PresenceRequest true "Presence"
// @Success      200 {object} response.APIResponse{data=ProfileResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /profiles/{id}/presence [put]
func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	var req PresenceRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to update presence")
		return
	}

	p, err := h.service.SetPresence(r.Context(), chi.URLParam(r, "id"), req.IsOnline, req.Location)
	if err != nil {
		writeError(w, err, "Failed to update presence")
		return
	}

	response.JSON(w, http.StatusOK, p.ToResponse(h.service.Now()))
}

// SetAvatar handles PUT /profiles/{id}/avatar
// @Summary      Change a profile avatar
// @Description  Stores the avatar and rewrites it on every activity the user appears in
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id path string true "User ID"
// @Param        request body AvatarRequest true "Avatar"
// @Success      200 {object} response.APIResponse{data=AvatarResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /profiles/{id}/avatar [put]
func (h *Handler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	var req AvatarRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to update avatar")
		return
	}

	p, n, err := h.service.SetAvatar(r.Context(), chi.URLParam(r, "id"), req.Avatar)
	if err != nil {
		writeError(w, err, "Failed to update avatar")
		return
	}

	response.JSON(w, http.StatusOK, AvatarResponse{
		Profile:           p.ToResponse(h.service.Now()),
		ActivitiesUpdated: n,
	})
}
