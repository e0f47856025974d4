// Package handler содержит HTTP-обработчики API маркетплейса грузоперевозок.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/freight-market/internal/access"
	"github.com/mmeshcher/freight-market/internal/middleware"
	"github.com/mmeshcher/freight-market/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	Register(ctx context.Context, draft model.UserDraft) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CurrentUser(ctx context.Context, p access.Principal) (*model.User, error)
	UpdateProfile(ctx context.Context, p access.Principal, patch model.ProfilePatch) (*model.User, error)
	ListCarriers(ctx context.Context, location string) ([]model.User, error)
	ListLoaders(ctx context.Context, location string) ([]model.User, error)
	ListAllUsers(ctx context.Context) ([]model.User, error)
	SetUserStatus(ctx context.Context, p access.Principal, id int64, change model.StatusChange) (*model.User, error)

	CreateOrder(ctx context.Context, clientID int64, draft model.OrderDraft) (*model.Order, error)
	GetOrder(ctx context.Context, p access.Principal, id int64) (*model.Order, error)
	ListClientOrders(ctx context.Context, clientID int64) ([]model.Order, error)
	ListCarrierOrders(ctx context.Context, carrierID int64) ([]model.Order, error)
	ListAvailableOrders(ctx context.Context) ([]model.Order, error)
	ListAllOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrder(ctx context.Context, p access.Principal, id int64, patch model.OrderPatch) (*model.Order, error)
	AcceptOrder(ctx context.Context, p access.Principal, id int64) (*model.Order, error)

	AssignLoader(ctx context.Context, p access.Principal, orderID, loaderID int64) (*model.Assignment, error)
	ListOrderLoaders(ctx context.Context, p access.Principal, orderID int64) ([]int64, error)

	CreateReview(ctx context.Context, p access.Principal, draft model.ReviewDraft) (*model.Review, error)
	ListUserReviews(ctx context.Context, userID int64) ([]model.Review, error)
}

// Handler реализует HTTP-обработчики API маркетплейса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	authLimiter    *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		authLimiter:    middleware.NewRateLimiter(time.Minute/10, 20),
	}
}

// AuthLimiter возвращает ограничитель частоты запросов регистрации и входа.
func (h *Handler) AuthLimiter() *middleware.RateLimiter {
	return h.authLimiter
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authenticated")
	}
	return p, ok
}

// Health сообщает о готовности сервиса и доступности хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("storage ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
