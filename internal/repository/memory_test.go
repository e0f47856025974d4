package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/freight-market/internal/model"
)

func newUser(username string, role model.Role, areas ...string) *model.User {
	return &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: []byte("hash"),
		FirstName:    "First",
		LastName:     "Last",
		Role:         role,
		Status:       model.UserStatusActive,
		WorkAreas:    areas,
	}
}

func newOrder(clientID int64, needLoaders int) *model.Order {
	return &model.Order{
		ClientID:        clientID,
		CategoryType:    model.CategoryBoxes,
		Description:     "ten boxes",
		PickupAddress:   "A",
		DeliveryAddress: "B",
		ScheduledDate:   time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC),
		VehicleType:     model.VehicleBoxTruck,
		NeedLoaders:     needLoaders,
		Status:          model.OrderStatusPending,
	}
}

func TestMemoryRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	alice, err := repo.CreateUser(ctx, newUser("alice", model.RoleClient))
	require.NoError(t, err)
	assert.Equal(t, int64(1), alice.ID)
	assert.Nil(t, alice.Rating)
	assert.False(t, alice.CreatedAt.IsZero())

	_, err = repo.CreateUser(ctx, newUser("alice", model.RoleCarrier))
	assert.ErrorIs(t, err, ErrUserExists)

	sameEmail := newUser("alice2", model.RoleClient)
	sameEmail.Email = alice.Email
	_, err = repo.CreateUser(ctx, sameEmail)
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = repo.GetUserByID(ctx, 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryRepository_ListUsersByRole(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.CreateUser(ctx, newUser("c1", model.RoleCarrier, "north", "south"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, newUser("c2", model.RoleCarrier, "south"))
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, newUser("l1", model.RoleLoader, "north"))
	require.NoError(t, err)

	carriers, err := repo.ListUsersByRole(ctx, model.RoleCarrier, "")
	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "c1", carriers[0].Username)
	assert.Equal(t, "c2", carriers[1].Username)

	again, err := repo.ListUsersByRole(ctx, model.RoleCarrier, "")
	require.NoError(t, err)
	assert.Equal(t, carriers, again)

	north, err := repo.ListUsersByRole(ctx, model.RoleCarrier, "north")
	require.NoError(t, err)
	require.Len(t, north, 1)
	assert.Equal(t, "c1", north[0].Username)

	loaders, err := repo.ListUsersByRole(ctx, model.RoleLoader, "south")
	require.NoError(t, err)
	assert.Empty(t, loaders)
	assert.NotNil(t, loaders)
}

func TestMemoryRepository_UpdateUserKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.CreateUser(ctx, newUser("bob", model.RoleCarrier))
	require.NoError(t, err)

	u.Role = model.RoleAdmin
	u.FirstName = "Robert"
	five := 5
	u.Rating = &five
	u.Status = model.UserStatusSuspended

	updated, err := repo.UpdateUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCarrier, updated.Role)
	assert.Equal(t, "Robert", updated.FirstName)
	assert.Nil(t, updated.Rating)
	assert.Equal(t, model.UserStatusSuspended, updated.Status)
}

func TestMemoryRepository_Orders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.CreateOrder(ctx, newOrder(1, 0))
	require.NoError(t, err)
	second, err := repo.CreateOrder(ctx, newOrder(2, 0))
	require.NoError(t, err)
	assert.Nil(t, first.UpdatedAt)

	carrierID := int64(7)
	second.CarrierID = &carrierID
	second.Status = model.OrderStatusAccepted
	second.ClientID = 99

	updated, err := repo.UpdateOrder(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.ClientID)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, model.OrderStatusAccepted, updated.Status)

	byClient, err := repo.ListOrdersByClient(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, first.ID, byClient[0].ID)

	byCarrier, err := repo.ListOrdersByCarrier(ctx, 7)
	require.NoError(t, err)
	require.Len(t, byCarrier, 1)
	assert.Equal(t, second.ID, byCarrier[0].ID)

	pending, err := repo.ListOrdersByStatus(ctx, model.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	all, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	_, err = repo.UpdateOrder(ctx, &model.Order{ID: 404})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newOrder(1, 0)
	o.Photos = []string{"a.jpg"}
	created, err := repo.CreateOrder(ctx, o)
	require.NoError(t, err)

	created.Photos[0] = "changed.jpg"

	got, err := repo.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, got.Photos)
}

func TestMemoryRepository_AssignLoader(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o, err := repo.CreateOrder(ctx, newOrder(1, 2))
	require.NoError(t, err)

	a, err := repo.AssignLoader(ctx, o.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, o.ID, a.OrderID)
	assert.Equal(t, int64(10), a.LoaderID)

	_, err = repo.AssignLoader(ctx, o.ID, 10)
	assert.ErrorIs(t, err, ErrAssignmentExists)

	_, err = repo.AssignLoader(ctx, o.ID, 11)
	require.NoError(t, err)

	_, err = repo.AssignLoader(ctx, o.ID, 12)
	assert.ErrorIs(t, err, ErrLoaderLimitReached)

	_, err = repo.AssignLoader(ctx, 404, 10)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	ids, err := repo.ListLoaderIDs(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
}

func TestMemoryRepository_CreateReviewRecomputesRating(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	client, err := repo.CreateUser(ctx, newUser("client", model.RoleClient))
	require.NoError(t, err)
	carrier, err := repo.CreateUser(ctx, newUser("carrier", model.RoleCarrier))
	require.NoError(t, err)
	o, err := repo.CreateOrder(ctx, newOrder(client.ID, 0))
	require.NoError(t, err)

	ratings := []int{5, 4}
	for _, r := range ratings {
		_, err := repo.CreateReview(ctx, &model.Review{
			OrderID:    o.ID,
			FromUserID: client.ID,
			ToUserID:   carrier.ID,
			Rating:     r,
		})
		require.NoError(t, err)
	}

	got, err := repo.GetUserByID(ctx, carrier.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 5, *got.Rating)

	_, err = repo.CreateReview(ctx, &model.Review{OrderID: o.ID, FromUserID: client.ID, ToUserID: carrier.ID, Rating: 1})
	require.NoError(t, err)

	got, err = repo.GetUserByID(ctx, carrier.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *got.Rating)

	reviews, err := repo.ListReviewsForUser(ctx, carrier.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, 1, reviews[0].Rating)

	_, err = repo.CreateReview(ctx, &model.Review{OrderID: o.ID, FromUserID: client.ID, ToUserID: 404, Rating: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryRepository_ConcurrentReviews(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	target, err := repo.CreateUser(ctx, newUser("target", model.RoleCarrier))
	require.NoError(t, err)
	o, err := repo.CreateOrder(ctx, newOrder(1, 0))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := repo.CreateReview(ctx, &model.Review{OrderID: o.ID, FromUserID: 1, ToUserID: target.ID, Rating: rating})
			assert.NoError(t, err)
		}(i%5 + 1)
	}
	wg.Wait()

	got, err := repo.GetUserByID(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 3, *got.Rating)
}

func TestMemoryRepository_AcceptOrderConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o, err := repo.CreateOrder(ctx, newOrder(1, 0))
	require.NoError(t, err)

	const carriers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		taken   int
	)
	for i := int64(1); i <= carriers; i++ {
		wg.Add(1)
		go func(carrierID int64) {
			defer wg.Done()
			_, err := repo.AcceptOrder(ctx, o.ID, 100+carrierID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, 100+carrierID)
			case assert.ErrorIs(t, err, ErrOrderTaken):
				taken++
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, carriers-1, taken)

	stored, err := repo.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CarrierID)
	assert.Equal(t, winners[0], *stored.CarrierID)
	assert.Equal(t, model.OrderStatusAccepted, stored.Status)
	require.NotNil(t, stored.UpdatedAt)
}

func TestMemoryRepository_AcceptOrderRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	cancelled := newOrder(1, 0)
	cancelled.Status = model.OrderStatusCancelled
	o, err := repo.CreateOrder(ctx, cancelled)
	require.NoError(t, err)

	_, err = repo.AcceptOrder(ctx, o.ID, 7)
	assert.ErrorIs(t, err, ErrOrderTaken)

	_, err = repo.AcceptOrder(ctx, 404, 7)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryRepository_UpdateOrderKeepsCarrier(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o, err := repo.CreateOrder(ctx, newOrder(1, 0))
	require.NoError(t, err)
	_, err = repo.AcceptOrder(ctx, o.ID, 7)
	require.NoError(t, err)

	// o прочитан до назначения перевозчика и не должен его затереть.
	o.Description = "stale edit"
	_, err = repo.UpdateOrder(ctx, o)
	assert.ErrorIs(t, err, ErrOrderTaken)

	other := int64(8)
	o.CarrierID = &other
	_, err = repo.UpdateOrder(ctx, o)
	assert.ErrorIs(t, err, ErrOrderTaken)

	same := int64(7)
	o.CarrierID = &same
	o.Status = model.OrderStatusInProgress
	updated, err := repo.UpdateOrder(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, "stale edit", updated.Description)
	assert.Equal(t, model.OrderStatusInProgress, updated.Status)
}
