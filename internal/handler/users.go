package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/freight-market/internal/model"
	"github.com/mmeshcher/freight-market/internal/validation"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register обрабатывает регистрацию нового пользователя и открывает сессию.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var draft model.UserDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	u, err := h.service.Register(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, r, "register user", err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, u.ID, u.Role); err != nil {
		h.logger.Error("issue session error", zap.Error(err), zap.Int64("userID", u.ID))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("user registered", zap.Int64("userID", u.ID), zap.String("role", string(u.Role)))
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// Login выполняет аутентификацию пользователя и установку cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, u.ID, u.Role); err != nil {
		h.logger.Error("issue session error", zap.Error(err), zap.Int64("userID", u.ID))
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Logout закрывает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	writeMessage(w, http.StatusOK, "Logged out")
}

// CurrentUser возвращает профиль владельца сессии.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	u, err := h.service.CurrentUser(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, r, "current user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateProfile обновляет профиль владельца сессии.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var patch model.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), p, patch)
	if err != nil {
		h.writeServiceError(w, r, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetUser возвращает профиль пользователя по идентификатору.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// GetCarriers возвращает перевозчиков, при наличии параметра location только из этого района.
func (h *Handler) GetCarriers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListCarriers(r.Context(), pathString(r, "location"))
	if err != nil {
		h.writeServiceError(w, r, "list carriers", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// GetLoaders возвращает грузчиков, при наличии параметра location только из этого района.
func (h *Handler) GetLoaders(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListLoaders(r.Context(), pathString(r, "location"))
	if err != nil {
		h.writeServiceError(w, r, "list loaders", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// AdminListUsers возвращает всех пользователей.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListAllUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list users", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// AdminSetUserStatus меняет статус учётной записи.
func (h *Handler) AdminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var change model.StatusChange
	if !decodeJSON(w, r, &change) {
		return
	}

	u, err := h.service.SetUserStatus(r.Context(), p, id, change)
	if err != nil {
		h.writeServiceError(w, r, "set user status", err)
		return
	}

	h.logger.Info("user status changed",
		zap.Int64("adminID", p.ID),
		zap.Int64("userID", u.ID),
		zap.String("status", string(u.Status)),
	)
	writeJSON(w, http.StatusOK, toUserResponse(u))
}
