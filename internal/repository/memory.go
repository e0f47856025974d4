package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/freight-market/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Используется для
// локального запуска и тестов; данные теряются при перезапуске.
type MemoryRepository struct {
	mu sync.RWMutex

	users       map[int64]*model.User
	orders      map[int64]*model.Order
	assignments []model.Assignment
	reviews     []model.Review

	nextUserID       int64
	nextOrderID      int64
	nextAssignmentID int64
	nextReviewID     int64

	now func() time.Time
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  make(map[int64]*model.User),
		orders: make(map[int64]*model.Order),
		now:    time.Now,
	}
}

// Close ничего не делает и нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error { return nil }

// Ping всегда успешен.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

// CreateUser сохраняет нового пользователя. Имя пользователя и email уникальны.
func (r *MemoryRepository) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(0, u.Username, u.Email); err != nil {
		return nil, err
	}

	r.nextUserID++
	stored := cloneUser(u)
	stored.ID = r.nextUserID
	stored.Rating = nil
	stored.CreatedAt = r.now()
	r.users[stored.ID] = stored

	return cloneUser(stored), nil
}

func (r *MemoryRepository) checkUniqueLocked(selfID int64, username, email string) error {
	for _, existing := range r.users {
		if existing.ID == selfID {
			continue
		}
		if existing.Username == username || existing.Email == email {
			return fmt.Errorf("%w: %s", ErrUserExists, username)
		}
	}
	return nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetUserByUsername возвращает пользователя по имени.
func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (r *MemoryRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	return r.filterUsers(func(*model.User) bool { return true }), nil
}

// ListUsersByRole возвращает пользователей с указанной ролью. Непустой location
// оставляет только тех, у кого эта локация входит в рабочие районы.
func (r *MemoryRepository) ListUsersByRole(ctx context.Context, role model.Role, location string) ([]model.User, error) {
	return r.filterUsers(func(u *model.User) bool {
		return u.Role == role && (location == "" || u.HasWorkArea(location))
	}), nil
}

func (r *MemoryRepository) filterUsers(keep func(*model.User) bool) []model.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.User, 0)
	for _, u := range r.users {
		if keep(u) {
			res = append(res, *cloneUser(u))
		}
	}
	slices.SortFunc(res, func(a, b model.User) int { return compareIDs(a.ID, b.ID) })
	return res
}

// UpdateUser сохраняет поля профиля и статус пользователя. Рейтинг не меняется.
func (r *MemoryRepository) UpdateUser(ctx context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := r.checkUniqueLocked(u.ID, stored.Username, u.Email); err != nil {
		return nil, err
	}

	updated := cloneUser(u)
	updated.Username = stored.Username
	updated.PasswordHash = stored.PasswordHash
	updated.Role = stored.Role
	updated.Rating = stored.Rating
	updated.CreatedAt = stored.CreatedAt
	r.users[u.ID] = updated

	return cloneUser(updated), nil
}

// CreateOrder сохраняет новый заказ.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextOrderID++
	stored := cloneOrder(o)
	stored.ID = r.nextOrderID
	stored.CreatedAt = r.now()
	stored.UpdatedAt = nil
	r.orders[stored.ID] = stored

	return cloneOrder(stored), nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *MemoryRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.filterOrders(func(*model.Order) bool { return true }), nil
}

// ListOrdersByClient возвращает заказы клиента.
func (r *MemoryRepository) ListOrdersByClient(ctx context.Context, clientID int64) ([]model.Order, error) {
	return r.filterOrders(func(o *model.Order) bool { return o.ClientID == clientID }), nil
}

// ListOrdersByCarrier возвращает заказы, назначенные перевозчику.
func (r *MemoryRepository) ListOrdersByCarrier(ctx context.Context, carrierID int64) ([]model.Order, error) {
	return r.filterOrders(func(o *model.Order) bool {
		return o.CarrierID != nil && *o.CarrierID == carrierID
	}), nil
}

// ListOrdersByStatus возвращает заказы в указанном статусе.
func (r *MemoryRepository) ListOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return r.filterOrders(func(o *model.Order) bool { return o.Status == status }), nil
}

func (r *MemoryRepository) filterOrders(keep func(*model.Order) bool) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			res = append(res, *cloneOrder(o))
		}
	}
	slices.SortFunc(res, func(a, b model.Order) int { return compareIDs(b.ID, a.ID) })
	return res
}

// UpdateOrder перезаписывает изменяемые поля заказа и проставляет время обновления.
// Клиент и время создания не меняются, назначенный перевозчик не заменяется.
func (r *MemoryRepository) UpdateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[o.ID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if stored.CarrierID != nil && (o.CarrierID == nil || *o.CarrierID != *stored.CarrierID) {
		return nil, ErrOrderTaken
	}

	updated := cloneOrder(o)
	updated.ClientID = stored.ClientID
	updated.CreatedAt = stored.CreatedAt
	now := r.now()
	updated.UpdatedAt = &now
	r.orders[o.ID] = updated

	return cloneOrder(updated), nil
}

// AcceptOrder назначает перевозчика на заказ, ожидающий перевозчика.
func (r *MemoryRepository) AcceptOrder(ctx context.Context, orderID, carrierID int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if stored.CarrierID != nil || stored.Status != model.OrderStatusPending {
		return nil, ErrOrderTaken
	}

	accepted := cloneOrder(stored)
	accepted.CarrierID = &carrierID
	accepted.Status = model.OrderStatusAccepted
	now := r.now()
	accepted.UpdatedAt = &now
	r.orders[orderID] = accepted

	return cloneOrder(accepted), nil
}

// AssignLoader назначает грузчика на заказ с учётом лимита needLoaders.
func (r *MemoryRepository) AssignLoader(ctx context.Context, orderID, loaderID int64) (*model.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	assigned := 0
	for _, a := range r.assignments {
		if a.OrderID != orderID {
			continue
		}
		if a.LoaderID == loaderID {
			return nil, ErrAssignmentExists
		}
		assigned++
	}
	if assigned >= o.NeedLoaders {
		return nil, ErrLoaderLimitReached
	}

	r.nextAssignmentID++
	a := model.Assignment{ID: r.nextAssignmentID, OrderID: orderID, LoaderID: loaderID}
	r.assignments = append(r.assignments, a)

	return &a, nil
}

// ListLoaderIDs возвращает идентификаторы грузчиков, назначенных на заказ.
func (r *MemoryRepository) ListLoaderIDs(ctx context.Context, orderID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0)
	for _, a := range r.assignments {
		if a.OrderID == orderID {
			ids = append(ids, a.LoaderID)
		}
	}
	return ids, nil
}

// CreateReview сохраняет отзыв и под той же блокировкой пересчитывает рейтинг адресата.
func (r *MemoryRepository) CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.users[rv.ToUserID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if _, ok := r.orders[rv.OrderID]; !ok {
		return nil, ErrOrderNotFound
	}

	r.nextReviewID++
	stored := *rv
	stored.ID = r.nextReviewID
	stored.CreatedAt = r.now()
	r.reviews = append(r.reviews, stored)

	var sum, count int64
	for _, existing := range r.reviews {
		if existing.ToUserID == rv.ToUserID {
			sum += int64(existing.Rating)
			count++
		}
	}
	target.Rating = model.RoundedMean(sum, count)

	return &stored, nil
}

// ListReviewsForUser возвращает отзывы, адресованные пользователю, новые первыми.
func (r *MemoryRepository) ListReviewsForUser(ctx context.Context, userID int64) ([]model.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Review, 0)
	for i := len(r.reviews) - 1; i >= 0; i-- {
		if r.reviews[i].ToUserID == userID {
			res = append(res, r.reviews[i])
		}
	}
	return res, nil
}

func compareIDs(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.WorkAreas = slices.Clone(u.WorkAreas)
	c.PasswordHash = slices.Clone(u.PasswordHash)
	if u.Rating != nil {
		v := *u.Rating
		c.Rating = &v
	}
	return &c
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Photos = slices.Clone(o.Photos)
	if o.CarrierID != nil {
		v := *o.CarrierID
		c.CarrierID = &v
	}
	if o.Price != nil {
		v := *o.Price
		c.Price = &v
	}
	if o.UpdatedAt != nil {
		v := *o.UpdatedAt
		c.UpdatedAt = &v
	}
	return &c
}
