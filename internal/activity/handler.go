package activity

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetup/pkg/middleware"
	"github.com/fkhayef/meetup/pkg/request"
	"github.com/fkhayef/meetup/pkg/response"
)

// Handler handles HTTP requests for activity operations
type Handler struct {
	store *Store
}

// NewHandler creates a new activity handler
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns the router for activity endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/avatar", h.UpdateAvatar)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Stop)

	// Membership
	r.Post("/{id}/join", h.Join)
	r.Post("/{id}/leave", h.Leave)
	r.Delete("/{id}/members/{memberId}", h.RemoveMember)

	return r
}

// UserRoutes returns the per-user activity lookups, mounted under /users
func (h *Handler) UserRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}/active-activity", h.ActiveActivity)
	r.Get("/{id}/can-create", h.CanCreate)
	r.Get("/{id}/past-activities", h.Past)
	r.Get("/{id}/activities", h.Mine)

	return r
}

// writeError maps store errors to HTTP statuses and reason codes
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, request.ErrInvalidBody):
		response.BadRequest(w, err.Error())
	case errors.Is(err, request.ErrValidation):
		response.UnprocessableEntity(w, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrActivityNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotCreator):
		response.Error(w, http.StatusForbidden, Reason(err), err.Error())
	case errors.Is(err, ErrLimitReached),
		errors.Is(err, ErrAlreadyInActivity),
		errors.Is(err, ErrActivityFull),
		errors.Is(err, ErrCapacityBelowMembers),
		errors.Is(err, ErrCannotRemoveCreator):
		response.Error(w, http.StatusConflict, Reason(err), err.Error())
	case errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrTooFar),
		errors.Is(err, ErrInvalidMood),
		errors.Is(err, ErrInvalidActivity),
		errors.Is(err, ErrNotMember):
		response.UnprocessableEntity(w, Reason(err), err.Error())
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

// Create handles POST /activities
// @Summary      Create a new activity
// @Description  Create a time-boxed activity with the caller as creator and first member
// @Tags         activities
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        request body CreateActivityRequest true "Activity creation request"
// @Success      201 {object} response.APIResponse{data=ActivityResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /activities [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to create activity")
		return
	}

	var mood Mood
	if req.Mood != "" {
		m, err := ParseMood(req.Mood)
		if err != nil {
			writeError(w, err, "Failed to create activity")
			return
		}
		mood = m
	}

	a, err := h.store.Create(r.Context(), CreateRequest{
		Name:            req.Name,
		Mood:            mood,
		Emoji:           req.Emoji,
		Avatar:          req.Avatar,
		Location:        req.Location,
		MeetingLocation: req.MeetingLocation,
		MaxMembers:      req.MaxMembers,
		IsPublic:        req.IsPublic,
		CreatorID:       userID,
		CreatorName:     req.CreatorName,
		CreatorAvatar:   req.CreatorAvatar,
		CreatorPosition: req.CreatorPosition,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		writeError(w, err, "Failed to create activity")
		return
	}

	response.JSON(w, http.StatusCreated, a.ToResponse(h.store.Now()))
}

// List handles GET /activities
// @Summary      List active activities
// @Description  List unexpired activities, oldest first, optionally filtered by mood
// @Tags         activities
// @Produce      json
// @Param        mood query string false "Mood filter (coffee, food, chill, walk, party, movie or all)"
// @Success      200 {object} response.APIResponse{data=[]ActivityResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /activities [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var mood Mood
	if q := r.URL.Query().Get("mood"); q != "" && q != MoodAll {
		m, err := ParseMood(q)
		if err != nil {
			writeError(w, err, "Failed to list activities")
			return
		}
		mood = m
	}

	list := h.store.ListActive(mood)
	response.JSONWithMeta(w, http.StatusOK, toResponses(list, h.store.Now()), &response.Meta{Total: len(list)})
}

// GetByID handles GET /activities/{id}
// @Summary      Get activity by ID
// @Description  Get an activity, expired ones included and flagged
// @Tags         activities
// @Produce      json
// @Param        id path string true "Activity ID"
// @Success      200 {object} response.APIResponse{data=ActivityResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /activities/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get activity")
		return
	}

	response.JSON(w, http.StatusOK, a.ToResponse(h.store.Now()))
}

// Update handles PUT /activities/{id}
// @Summary      Update an activity
// @Description  Creator-only edit of name, mood, emoji, avatar, capacity, meeting place and visibility
// @Tags         activities
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Activity ID"
// @Param        request body UpdateActivityRequest true "Activity update request"
// @Success      200 {object} response.APIResponse{data=ActivityResponse}
// @Success      204 "Activity no longer exists, nothing changed"
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /activities/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to update activity")
		return
	}
	mood, err := ParseMood(req.Mood)
	if err != nil {
		writeError(w, err, "Failed to update activity")
		return
	}

	a, err := h.store.Update(r.Context(), userID, UpdateRequest{
		ID:              chi.URLParam(r, "id"),
		Name:            req.Name,
		Mood:            mood,
		Emoji:           req.Emoji,
		Avatar:          req.Avatar,
		MaxMembers:      req.MaxMembers,
		MeetingLocation: req.MeetingLocation,
		IsPublic:        req.IsPublic,
	})
	if err != nil {
		writeError(w, err, "Failed to update activity")
		return
	}
	if a == nil {
		response.NoContent(w)
		return
	}

	response.JSON(w, http.StatusOK, a.ToResponse(h.store.Now()))
}

// Stop handles DELETE /activities/{id}
// @Summary      Stop an activity
// @Description  Creator-only; removes the activity and clears every member's pointer to it
// @Tags         activities
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Activity ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Router       /activities/{id} [delete]
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.store.Stop(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err, "Failed to stop activity")
		return
	}

	response.NoContent(w)
}

// Join handles POST /activities/{id}/join
// @Summary      Join an activity
// @Description  Join a live activity; joining one you already belong to is a no-op
// @Tags         activities
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Activity ID"
// @Param        request body JoinActivityRequest false "Display details"
// @Success      200 {object} response.APIResponse{data=ActivityResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /activities/{id}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req JoinActivityRequest
	if r.ContentLength != 0 {
		if err := request.Decode(r, &req); err != nil {
			writeError(w, err, "Failed to join activity")
			return
		}
	}

	a, err := h.store.Join(r.Context(), chi.URLParam(r, "id"), userID, req.Name, req.Avatar)
	if err != nil {
		writeError(w, err, "Failed to join activity")
		return
	}

	response.JSON(w, http.StatusOK, a.ToResponse(h.store.Now()))
}

// Leave handles POST /activities/{id}/leave
// @Summary      Leave an activity
// @Description  Remove the caller from the activity; the activity stays for the others
// @Tags         activities
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Activity ID"
// @Success      204
// @Router       /activities/{id}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.store.Leave(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err, "Failed to leave activity")
		return
	}

	response.NoContent(w)
}

// RemoveMember handles DELETE /activities/{id}/members/{memberId}
// @Summary      Remove a member
// @Description  Creator-only removal of another member
// @Tags         activities
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Activity ID"
// @Param        memberId path string true "Member user ID"
// @Success      200 {object} response.APIResponse{data=ActivityResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /activities/{id}/members/{memberId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	a, err := h.store.RemoveMember(r.Context(), chi.URLParam(r, "id"), userID, chi.URLParam(r, "memberId"))
	if err != nil {
		writeError(w, err, "Failed to remove member")
		return
	}

	response.JSON(w, http.StatusOK, a.ToResponse(h.store.Now()))
}

// UpdateAvatar handles POST /activities/avatar
// @Summary      Update the caller's avatar in every activity
// @Description  Rewrites the caller's member rows across all activities in one commit
// @Tags         activities
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        request body UpdateAvatarRequest true "New avatar"
// @Success      200 {object} response.APIResponse{data=AvatarUpdateResponse}
// @Failure      422 {object} response.APIResponse
// @Router       /activities/avatar [post]
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req UpdateAvatarRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to update avatar")
		return
	}

	n, err := h.store.UpdateAvatar(r.Context(), userID, req.Avatar)
	if err != nil {
		writeError(w, err, "Failed to update avatar")
		return
	}

	response.JSON(w, http.StatusOK, AvatarUpdateResponse{Updated: n})
}

// ActiveActivity handles GET /users/{id}/active-activity
// @Summary      Get a user's active activity
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=ActiveActivityResponse}
// @Router       /users/{id}/active-activity [get]
func (h *Handler) ActiveActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	activityID, active := h.store.ActiveActivityID(userID)

	response.JSON(w, http.StatusOK, ActiveActivityResponse{
		UserID:     userID,
		ActivityID: activityID,
		Active:     active,
	})
}

// CanCreate handles GET /users/{id}/can-create
// @Summary      Check whether a user may create an activity
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=CanCreateResponse}
// @Router       /users/{id}/can-create [get]
func (h *Handler) CanCreate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	response.JSON(w, http.StatusOK, CanCreateResponse{
		UserID:    userID,
		CanCreate: h.store.CanUserCreate(userID),
	})
}

// Past handles GET /users/{id}/past-activities
// @Summary      List a user's past activities
// @Description  Expired activities the user was a member of, most recently ended first
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=[]ActivityResponse}
// @Router       /users/{id}/past-activities [get]
func (h *Handler) Past(w http.ResponseWriter, r *http.Request) {
	list := h.store.ListPast(chi.URLParam(r, "id"))
	response.JSONWithMeta(w, http.StatusOK, toResponses(list, h.store.Now()), &response.Meta{Total: len(list)})
}

// Mine handles GET /users/{id}/activities
// @Summary      List a user's live activities
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} response.APIResponse{data=[]ActivityResponse}
// @Router       /users/{id}/activities [get]
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	list := h.store.ListMine(chi.URLParam(r, "id"))
	response.JSONWithMeta(w, http.StatusOK, toResponses(list, h.store.Now()), &response.Meta{Total: len(list)})
}
