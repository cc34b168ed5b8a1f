package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetup/pkg/middleware"
	"github.com/fkhayef/meetup/pkg/request"
	"github.com/fkhayef/meetup/pkg/response"
)

// Handler handles HTTP requests for chat operations
type Handler struct {
	service *Service
}

// NewHandler creates a new chat handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for chat endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}/messages", h.ListMessages)
	r.Post("/{id}/messages", h.PostMessage)
	r.Post("/{id}/read", h.MarkRead)

	return r
}

// PostMessageRequest represents a new chat message
type PostMessageRequest struct {
	SenderName string `json:"sender_name" validate:"max=100"`
	Text       string `json:"text" validate:"max=4000"`
	ImageURI   string `json:"image_uri,omitempty" validate:"omitempty,url"`
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "X-User-ID header required")
	}
	return userID, ok
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, request.ErrInvalidBody):
		response.BadRequest(w, err.Error())
	case errors.Is(err, request.ErrValidation):
		response.UnprocessableEntity(w, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrChatNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrEmptyMessage):
		response.UnprocessableEntity(w, "EMPTY_MESSAGE", err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// List handles GET /chats
// @Summary      List chat previews
// @Description  Conversation list entries with the caller's unread counts, most recent first
// @Tags         chats
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Success      200 {object} response.APIResponse{data=[]Preview}
// @Router       /chats [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	previews, err := h.service.ListPreviews(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to list chats")
		return
	}
	if previews == nil {
		previews = []*Preview{}
	}

	response.JSONWithMeta(w, http.StatusOK, previews, &response.Meta{Total: len(previews)})
}

// ListMessages handles GET /chats/{id}/messages
// @Summary      List chat messages
// @Tags         chats
// @Produce      json
// @Param        id path string true "Chat ID"
// @Success      200 {object} response.APIResponse{data=[]Message}
// @Failure      404 {object} response.APIResponse
// @Router       /chats/{id}/messages [get]
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ListMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to list messages")
		return
	}

	response.JSON(w, http.StatusOK, messages)
}

// PostMessage handles POST /chats/{id}/messages
// @Summary      Send a chat message
// @Tags         chats
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Chat ID"
// @Param        request body PostMessageRequest true "Message"
// @Success      201 {object} response.APIResponse{data=Message}
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /chats/{id}/messages [post]
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err, "Failed to send message")
		return
	}

	m, err := h.service.PostMessage(r.Context(), chi.URLParam(r, "id"), userID, req.SenderName, req.Text, req.ImageURI)
	if err != nil {
		writeError(w, err, "Failed to send message")
		return
	}

	response.JSON(w, http.StatusCreated, m)
}

// MarkRead handles POST /chats/{id}/read
// @Summary      Mark a chat as read
// @Tags         chats
// @Param        X-User-ID header string true "Caller user ID"
// @Param        id path string true "Chat ID"
// @Success      200 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /chats/{id}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err, "Failed to mark chat as read")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Chat marked as read"})
}
