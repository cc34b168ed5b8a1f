package shuffle

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetup/internal/activity"
	"github.com/fkhayef/meetup/internal/profile"
	"github.com/fkhayef/meetup/pkg/middleware"
	"github.com/fkhayef/meetup/pkg/request"
	"github.com/fkhayef/meetup/pkg/response"
)

// Handler handles HTTP requests for the caller's shuffle session
type Handler struct {
	manager *Manager
}

// NewHandler creates a new shuffle handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes returns the router for shuffle endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Post("/", h.Start)
	r.Delete("/", h.Cancel)
	r.Post("/settle", h.Settle)
	r.Post("/again", h.ShuffleAgain)
	r.Post("/confirm", h.Confirm)

	return r
}

// StartRequest selects the mood to match on
type StartRequest struct {
	Mood string `json:"mood" validate:"required"`
}

// ConfirmResponse carries the finished session and, on success, the activity
type ConfirmResponse struct {
	Session  *Session                   `json:"session"`
	Activity *activity.ActivityResponse `json:"activity,omitempty"`
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, request.ErrInvalidBody):
		response.BadRequest(w, err.Error())
	case errors.Is(err, request.ErrValidation):
		response.UnprocessableEntity(w, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, activity.ErrInvalidMood):
		response.UnprocessableEntity(w, "INVALID_MOOD", err.Error())
	case errors.Is(err, profile.ErrProfileNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNoSession):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyAvailable):
		response.Error(w, http.StatusConflict, "ALREADY_AVAILABLE", err.Error())
	case errors.Is(err, ErrSessionActive):
		response.Error(w, http.StatusConflict, "SESSION_ACTIVE", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "X-User-ID header required")
	}
	return userID, ok
}

// Get handles GET /shuffle
// @Summary      Get the caller's shuffle session
// @Tags         shuffle
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      200 {object} response.APIResponse{data=Session}
// @Router       /shuffle [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, h.manager.Get(userID))
}

// Start handles POST /shuffle
// @Summary      Start shuffling
// @Description  Marks the caller available with the mood and draws a sequence of candidates
// @Tags         shuffle
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        request body StartRequest true "Mood"
// @Success      201 {object} response.APIResponse{data=Session}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /shuffle [post]
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req StartRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to start shuffle")
		return
	}
	mood, err := activity.ParseMood(req.Mood)
	if err != nil {
		writeError(w, err, "Failed to start shuffle")
		return
	}

	s, err := h.manager.Start(r.Context(), userID, mood)
	if err != nil {
		writeError(w, err, "Failed to start shuffle")
		return
	}

	response.JSON(w, http.StatusCreated, s)
}

// Settle handles POST /shuffle/settle
// @Summary      Settle on the last presented candidate
// @Tags         shuffle
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      200 {object} response.APIResponse{data=Session}
// @Failure      409 {object} response.APIResponse
// @Router       /shuffle/settle [post]
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	s, err := h.manager.Settle(userID)
	if err != nil {
		writeError(w, err, "Failed to settle shuffle")
		return
	}

	response.JSON(w, http.StatusOK, s)
}

// ShuffleAgain handles POST /shuffle/again
// @Summary      Shuffle again
// @Tags         shuffle
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      200 {object} response.APIResponse{data=Session}
// @Failure      409 {object} response.APIResponse
// @Router       /shuffle/again [post]
func (h *Handler) ShuffleAgain(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	s, err := h.manager.ShuffleAgain(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to shuffle again")
		return
	}

	response.JSON(w, http.StatusOK, s)
}

// Confirm handles POST /shuffle/confirm
// @Summary      Create an activity with the match
// @Description  A store rejection is reported as outcome cannot_create
// @Tags         shuffle
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      201 {object} response.APIResponse{data=ConfirmResponse}
// @Success      200 {object} response.APIResponse{data=ConfirmResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /shuffle/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	s, a, err := h.manager.Confirm(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to confirm match")
		return
	}

	if a == nil {
		response.JSON(w, http.StatusOK, ConfirmResponse{Session: s})
		return
	}
	response.JSON(w, http.StatusCreated, ConfirmResponse{
		Session:  s,
		Activity: a.ToResponse(a.CreatedAt),
	})
}

// Cancel handles DELETE /shuffle
// @Summary      Cancel the shuffle
// @Tags         shuffle
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      200 {object} response.APIResponse{data=Session}
// @Router       /shuffle [delete]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, h.manager.Cancel(userID))
}
