// Package service реализует бизнес-логику маркетплейса грузоперевозок.
package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/freight-market/internal/model"
	"github.com/mmeshcher/freight-market/internal/repository"
)

var (
	// ErrUnauthenticated возвращается, если запрос выполнен без действующей сессии.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden возвращается, если у пользователя нет прав на ресурс.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном имени пользователя или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended возвращается при входе в заблокированную учётную запись.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrLoaderNotFound возвращается, если грузчик не существует или имеет другую роль.
	ErrLoaderNotFound = errors.New("loader not found")
	// ErrCarrierNotFound возвращается, если перевозчик не существует или имеет другую роль.
	ErrCarrierNotFound = errors.New("carrier not found")
	// ErrLoaderLimitReached возвращается, если на заказ уже назначено needLoaders грузчиков.
	ErrLoaderLimitReached = repository.ErrLoaderLimitReached
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role, location string) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) (*model.User, error)

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByClient(ctx context.Context, clientID int64) ([]model.Order, error)
	ListOrdersByCarrier(ctx context.Context, carrierID int64) ([]model.Order, error)
	ListOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	UpdateOrder(ctx context.Context, o *model.Order) (*model.Order, error)
	AcceptOrder(ctx context.Context, orderID, carrierID int64) (*model.Order, error)

	AssignLoader(ctx context.Context, orderID, loaderID int64) (*model.Assignment, error)
	ListLoaderIDs(ctx context.Context, orderID int64) ([]int64, error)

	CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error)
	ListReviewsForUser(ctx context.Context, userID int64) ([]model.Review, error)
}

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo       Repository
	bcryptCost int
}

// Option настраивает Service.
type Option func(*Service)

// WithPasswordCost задаёт стоимость bcrypt при хешировании паролей.
func WithPasswordCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
