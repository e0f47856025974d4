package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/freight-market/internal/model"
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := newPostgresRepository(mock)
	repo.delays = nil

	return repo, mock
}

var userRowColumns = []string{
	"id", "username", "email", "password_hash", "first_name", "last_name", "phone", "role", "status",
	"profile_picture", "work_areas", "vehicle_type", "vehicle_capacity", "vehicle_photo", "description",
	"rating", "created_at",
}

var orderRowColumns = []string{
	"id", "client_id", "carrier_id", "category_type", "description", "pickup_address", "delivery_address",
	"scheduled_date", "vehicle_type", "need_loaders", "photos", "status", "price", "created_at", "updated_at",
	"scheduled_offset",
}

func TestPostgresRepository_GetUserByID(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	vehicle := "box_truck"
	rating := 4

	mock.ExpectQuery("FROM users WHERE id = ").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(
			int64(7), "mike", "mike@example.com", []byte("hash"), "Mike", "Johnson", (*string)(nil), "carrier", "active",
			(*string)(nil), []string{"north"}, &vehicle, (*string)(nil), (*string)(nil), (*string)(nil),
			&rating, created,
		))

	u, err := repo.GetUserByID(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, model.RoleCarrier, u.Role)
	assert.Equal(t, model.UserStatusActive, u.Status)
	require.NotNil(t, u.VehicleType)
	assert.Equal(t, model.VehicleBoxTruck, *u.VehicleType)
	assert.Equal(t, []string{"north"}, u.WorkAreas)
	require.NotNil(t, u.Rating)
	assert.Equal(t, 4, *u.Rating)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrderByID_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("FROM orders WHERE id = ").
		WithArgs(int64(5)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetOrderByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListOrdersByClient(t *testing.T) {
	repo, mock := newMockRepository(t)

	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	carrierID := int64(7)
	price := int64(150)

	mock.ExpectQuery("FROM orders WHERE client_id = ").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
			int64(3), int64(1), &carrierID, "furniture", "sofa", "A", "B",
			scheduled, "pickup", 1, []string{}, "accepted", &price, scheduled, (*time.Time)(nil), 0,
		))

	orders, err := repo.ListOrdersByClient(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, model.OrderStatusAccepted, o.Status)
	assert.Equal(t, model.CategoryFurniture, o.CategoryType)
	require.NotNil(t, o.CarrierID)
	assert.Equal(t, int64(7), *o.CarrierID)
	assert.Nil(t, o.UpdatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateUser_Duplicate(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.CreateUser(context.Background(), &model.User{Username: "mike", Role: model.RoleCarrier})
	assert.ErrorIs(t, err, ErrUserExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateReview_RecomputesRatingInTx(t *testing.T) {
	repo, mock := newMockRepository(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM users WHERE id = .+ FOR UPDATE").
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(int64(10), int64(1), int64(2), 4, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "from_user_id", "to_user_id", "rating", "comment", "created_at"}).
			AddRow(int64(30), int64(10), int64(1), int64(2), 4, (*string)(nil), created))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(int64(9), int64(2)))
	mock.ExpectExec("UPDATE users SET rating").
		WithArgs(int64(2), 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rv, err := repo.CreateReview(context.Background(), &model.Review{
		OrderID:    10,
		FromUserID: 1,
		ToUserID:   2,
		Rating:     4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), rv.ID)
	assert.Equal(t, created, rv.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateReview_UnknownTarget(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM users WHERE id = .+ FOR UPDATE").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CreateReview(context.Background(), &model.Review{OrderID: 1, FromUserID: 1, ToUserID: 404, Rating: 3})
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AssignLoader(t *testing.T) {
	tests := []struct {
		name     string
		assigned int
		same     int
		wantErr  error
	}{
		{name: "assigned", assigned: 0, same: 0},
		{name: "duplicate", assigned: 1, same: 1, wantErr: ErrAssignmentExists},
		{name: "limit reached", assigned: 1, same: 0, wantErr: ErrLoaderLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)

			mock.ExpectBegin()
			mock.ExpectQuery("SELECT need_loaders FROM orders WHERE id = .+ FOR UPDATE").
				WithArgs(int64(3)).
				WillReturnRows(pgxmock.NewRows([]string{"need_loaders"}).AddRow(1))
			mock.ExpectQuery("FROM order_loaders").
				WithArgs(int64(3), int64(12)).
				WillReturnRows(pgxmock.NewRows([]string{"count", "same"}).AddRow(tt.assigned, tt.same))

			if tt.wantErr == nil {
				mock.ExpectQuery("INSERT INTO order_loaders").
					WithArgs(int64(3), int64(12)).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			a, err := repo.AssignLoader(context.Background(), 3, 12)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, model.Assignment{ID: 1, OrderID: 3, LoaderID: 12}, *a)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_GetOrderByID_RestoresOffset(t *testing.T) {
	repo, mock := newMockRepository(t)

	stored := time.Date(2026, 11, 1, 7, 0, 0, 123000000, time.UTC)

	mock.ExpectQuery("FROM orders WHERE id = ").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
			int64(3), int64(1), (*int64)(nil), "boxes", "ten boxes", "A", "B",
			stored, "pickup", 0, []string{}, "pending", (*int64)(nil), stored, (*time.Time)(nil), 3*60*60,
		))

	o, err := repo.GetOrderByID(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "2026-11-01T10:00:00.123+03:00", o.ScheduledDate.Format(time.RFC3339Nano))
	assert.True(t, o.ScheduledDate.Equal(stored))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateOrder_StoresOffset(t *testing.T) {
	repo, mock := newMockRepository(t)

	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.FixedZone("", -5*60*60))

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(int64(1), (*int64)(nil), "boxes", "ten boxes", "A", "B",
			scheduled, "pickup", 0, []string{}, "pending", (*int64)(nil), -5*60*60).
		WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
			int64(3), int64(1), (*int64)(nil), "boxes", "ten boxes", "A", "B",
			scheduled.UTC(), "pickup", 0, []string{}, "pending", (*int64)(nil), scheduled, (*time.Time)(nil), -5*60*60,
		))

	o, err := repo.CreateOrder(context.Background(), &model.Order{
		ClientID:        1,
		CategoryType:    model.CategoryBoxes,
		Description:     "ten boxes",
		PickupAddress:   "A",
		DeliveryAddress: "B",
		ScheduledDate:   scheduled,
		VehicleType:     model.VehiclePickup,
		Status:          model.OrderStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01T10:00:00-05:00", o.ScheduledDate.Format(time.RFC3339Nano))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AcceptOrder(t *testing.T) {
	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	carrierID := int64(7)

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name: "accepted",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("(?s)UPDATE orders SET carrier_id = .+ WHERE id = .+ AND status = .+ AND carrier_id IS NULL").
					WithArgs(int64(3), int64(7), "accepted", "pending").
					WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
						int64(3), int64(1), &carrierID, "boxes", "ten boxes", "A", "B",
						scheduled, "pickup", 0, []string{}, "accepted", (*int64)(nil), scheduled, &scheduled, 0,
					))
			},
		},
		{
			name: "taken by another carrier",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE orders SET carrier_id").
					WithArgs(int64(3), int64(7), "accepted", "pending").
					WillReturnError(pgx.ErrNoRows)
				other := int64(8)
				mock.ExpectQuery("FROM orders WHERE id = ").
					WithArgs(int64(3)).
					WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
						int64(3), int64(1), &other, "boxes", "ten boxes", "A", "B",
						scheduled, "pickup", 0, []string{}, "accepted", (*int64)(nil), scheduled, &scheduled, 0,
					))
			},
			wantErr: ErrOrderTaken,
		},
		{
			name: "missing order",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("UPDATE orders SET carrier_id").
					WithArgs(int64(3), int64(7), "accepted", "pending").
					WillReturnError(pgx.ErrNoRows)
				mock.ExpectQuery("FROM orders WHERE id = ").
					WithArgs(int64(3)).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t)
			tt.setup(mock)

			o, err := repo.AcceptOrder(context.Background(), 3, 7)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, o.CarrierID)
				assert.Equal(t, int64(7), *o.CarrierID)
				assert.Equal(t, model.OrderStatusAccepted, o.Status)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_UpdateOrder_CarrierChanged(t *testing.T) {
	repo, mock := newMockRepository(t)

	scheduled := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	other := int64(8)

	mock.ExpectQuery("(?s)UPDATE orders SET .+ WHERE id = .+ AND \\(carrier_id IS NULL OR carrier_id IS NOT DISTINCT FROM").
		WithArgs(int64(3), (*int64)(nil), "boxes", "stale edit", "A", "B",
			scheduled, "pickup", 0, []string{}, "pending", (*int64)(nil), 0).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM orders WHERE id = ").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(orderRowColumns).AddRow(
			int64(3), int64(1), &other, "boxes", "ten boxes", "A", "B",
			scheduled, "pickup", 0, []string{}, "accepted", (*int64)(nil), scheduled, &scheduled, 0,
		))

	_, err := repo.UpdateOrder(context.Background(), &model.Order{
		ID:              3,
		ClientID:        1,
		CategoryType:    model.CategoryBoxes,
		Description:     "stale edit",
		PickupAddress:   "A",
		DeliveryAddress: "B",
		ScheduledDate:   scheduled,
		VehicleType:     model.VehiclePickup,
		Status:          model.OrderStatusPending,
	})
	assert.ErrorIs(t, err, ErrOrderTaken)

	assert.NoError(t, mock.ExpectationsWereMet())
}
