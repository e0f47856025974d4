package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/freight-market/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pgxPool описывает подмножество методов pgxpool.Pool, используемое репозиторием.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, role, status,
	profile_picture, work_areas, vehicle_type, vehicle_capacity, vehicle_photo, description, rating, created_at`

const orderColumns = `id, client_id, carrier_id, category_type, description, pickup_address, delivery_address,
	scheduled_date, vehicle_type, need_loaders, photos, status, price, created_at, updated_at, scheduled_offset`

const reviewColumns = `id, order_id, from_user_id, to_user_id, rating, comment, created_at`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   pgxPool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return newPostgresRepository(pool), nil
}

func newPostgresRepository(pool pgxPool) *PostgresRepository {
	return &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при конфликте сериализации, взаимной блокировке
// и обрыве соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, phone, role, status,
			profile_picture, work_areas, vehicle_type, vehicle_capacity, vehicle_photo, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), string(u.Status),
		u.ProfilePicture, nonNil(u.WorkAreas), vehicleArg(u.VehicleType), u.VehicleCapacity, u.VehiclePhoto, u.Description,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername возвращает пользователя по имени.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей в порядке регистрации.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return collectUsers(rows)
}

// ListUsersByRole возвращает пользователей с ролью role; непустой location
// фильтрует по рабочим районам.
func (r *PostgresRepository) ListUsersByRole(ctx context.Context, role model.Role, location string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE role = $1 AND ($2::text = '' OR $2::text = ANY(work_areas))
		 ORDER BY id`,
		string(role), location,
	)
	if err != nil {
		return nil, fmt.Errorf("select users by role: %w", err)
	}
	return collectUsers(rows)
}

// UpdateUser сохраняет поля профиля и статус пользователя. Рейтинг не меняется.
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET email = $2, first_name = $3, last_name = $4, phone = $5, status = $6,
			profile_picture = $7, work_areas = $8, vehicle_type = $9, vehicle_capacity = $10,
			vehicle_photo = $11, description = $12
		 WHERE id = $1
		 RETURNING `+userColumns,
		u.ID, u.Email, u.FirstName, u.LastName, u.Phone, string(u.Status),
		u.ProfilePicture, nonNil(u.WorkAreas), vehicleArg(u.VehicleType), u.VehicleCapacity,
		u.VehiclePhoto, u.Description,
	)

	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// CreateOrder сохраняет новый заказ.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO orders (client_id, carrier_id, category_type, description, pickup_address, delivery_address,
			scheduled_date, vehicle_type, need_loaders, photos, status, price, scheduled_offset)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+orderColumns,
		o.ClientID, o.CarrierID, string(o.CategoryType), o.Description, o.PickupAddress, o.DeliveryAddress,
		o.ScheduledDate, string(o.VehicleType), o.NeedLoaders, nonNil(o.Photos), string(o.Status), o.Price,
		zoneOffset(o.ScheduledDate),
	)

	created, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return created, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC`)
}

// ListOrdersByClient возвращает заказы клиента.
func (r *PostgresRepository) ListOrdersByClient(ctx context.Context, clientID int64) ([]model.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE client_id = $1 ORDER BY id DESC`, clientID)
}

// ListOrdersByCarrier возвращает заказы, назначенные перевозчику.
func (r *PostgresRepository) ListOrdersByCarrier(ctx context.Context, carrierID int64) ([]model.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE carrier_id = $1 ORDER BY id DESC`, carrierID)
}

// ListOrdersByStatus возвращает заказы в указанном статусе.
func (r *PostgresRepository) ListOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY id DESC`, string(status))
}

func (r *PostgresRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrder перезаписывает изменяемые поля заказа и проставляет updated_at.
// Уже назначенный перевозчик не может быть заменён или снят: если он изменился
// после чтения заказа, возвращается ErrOrderTaken.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, o *model.Order) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE orders SET carrier_id = $2, category_type = $3, description = $4, pickup_address = $5,
			delivery_address = $6, scheduled_date = $7, vehicle_type = $8, need_loaders = $9, photos = $10,
			status = $11, price = $12, scheduled_offset = $13, updated_at = NOW()
		 WHERE id = $1 AND (carrier_id IS NULL OR carrier_id IS NOT DISTINCT FROM $2)
		 RETURNING `+orderColumns,
		o.ID, o.CarrierID, string(o.CategoryType), o.Description, o.PickupAddress,
		o.DeliveryAddress, o.ScheduledDate, string(o.VehicleType), o.NeedLoaders, nonNil(o.Photos),
		string(o.Status), o.Price, zoneOffset(o.ScheduledDate),
	)

	updated, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOrTaken(ctx, o.ID)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return updated, nil
}

// AcceptOrder назначает перевозчика на заказ одним условным UPDATE: заказ должен
// быть в статусе pending и без перевозчика, иначе возвращается ErrOrderTaken.
func (r *PostgresRepository) AcceptOrder(ctx context.Context, orderID, carrierID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE orders SET carrier_id = $2, status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4 AND carrier_id IS NULL
		 RETURNING `+orderColumns,
		orderID, carrierID, string(model.OrderStatusAccepted), string(model.OrderStatusPending),
	)

	accepted, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOrTaken(ctx, orderID)
		}
		return nil, fmt.Errorf("accept order: %w", err)
	}
	return accepted, nil
}

// missingOrTaken различает отсутствующий заказ и заказ, не прошедший условие UPDATE.
func (r *PostgresRepository) missingOrTaken(ctx context.Context, orderID int64) error {
	if _, err := r.GetOrderByID(ctx, orderID); err != nil {
		return err
	}
	return ErrOrderTaken
}

// AssignLoader назначает грузчика на заказ. Строка заказа блокируется, чтобы
// параллельные назначения не превысили need_loaders.
func (r *PostgresRepository) AssignLoader(ctx context.Context, orderID, loaderID int64) (*model.Assignment, error) {
	var res *model.Assignment

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var needLoaders int
		err = tx.QueryRow(ctx, `SELECT need_loaders FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&needLoaders)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order for update: %w", err)
		}

		var assigned, same int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE loader_id = $2)
			 FROM order_loaders
			 WHERE order_id = $1`,
			orderID, loaderID,
		).Scan(&assigned, &same)
		if err != nil {
			return fmt.Errorf("count loaders: %w", err)
		}

		if same > 0 {
			return ErrAssignmentExists
		}
		if assigned >= needLoaders {
			return ErrLoaderLimitReached
		}

		a := model.Assignment{OrderID: orderID, LoaderID: loaderID}
		err = tx.QueryRow(ctx,
			`INSERT INTO order_loaders (order_id, loader_id) VALUES ($1, $2) RETURNING id`,
			orderID, loaderID,
		).Scan(&a.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAssignmentExists
			}
			return fmt.Errorf("insert assignment: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		res = &a
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ListLoaderIDs возвращает идентификаторы грузчиков, назначенных на заказ.
func (r *PostgresRepository) ListLoaderIDs(ctx context.Context, orderID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT loader_id FROM order_loaders WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select loaders: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan loader id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// CreateReview сохраняет отзыв и в той же транзакции пересчитывает рейтинг адресата.
// Строка адресата блокируется, чтобы параллельные отзывы не потеряли обновление рейтинга.
func (r *PostgresRepository) CreateReview(ctx context.Context, rv *model.Review) (*model.Review, error) {
	var res *model.Review

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, rv.ToUserID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		created, err := scanReview(tx.QueryRow(ctx,
			`INSERT INTO reviews (order_id, from_user_id, to_user_id, rating, comment)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+reviewColumns,
			rv.OrderID, rv.FromUserID, rv.ToUserID, rv.Rating, rv.Comment,
		))
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		var sum, count int64
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE to_user_id = $1`,
			rv.ToUserID,
		).Scan(&sum, &count)
		if err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE users SET rating = $2 WHERE id = $1`, rv.ToUserID, ratingArg(model.RoundedMean(sum, count)))
		if err != nil {
			return fmt.Errorf("update rating: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		res = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ListReviewsForUser возвращает отзывы, адресованные пользователю, новые первыми.
func (r *PostgresRepository) ListReviewsForUser(ctx context.Context, userID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews
		 WHERE to_user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	res := make([]model.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, *rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func collectUsers(rows pgx.Rows) ([]model.User, error) {
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u           model.User
		role        string
		status      string
		vehicleType *string
	)

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &role, &status,
		&u.ProfilePicture, &u.WorkAreas, &vehicleType, &u.VehicleCapacity, &u.VehiclePhoto, &u.Description,
		&u.Rating, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	if vehicleType != nil {
		vt := model.VehicleType(*vehicleType)
		u.VehicleType = &vt
	}

	return &u, nil
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o            model.Order
		categoryType string
		vehicleType  string
		status       string
		offset       int
	)

	err := row.Scan(
		&o.ID, &o.ClientID, &o.CarrierID, &categoryType, &o.Description, &o.PickupAddress, &o.DeliveryAddress,
		&o.ScheduledDate, &vehicleType, &o.NeedLoaders, &o.Photos, &status, &o.Price, &o.CreatedAt, &o.UpdatedAt,
		&offset,
	)
	if err != nil {
		return nil, err
	}

	// Дата хранится в UTC, смещение клиента восстанавливается отдельно.
	o.ScheduledDate = withOffset(o.ScheduledDate, offset)

	o.CategoryType = model.CategoryType(categoryType)
	o.VehicleType = model.VehicleType(vehicleType)
	o.Status = model.OrderStatus(status)

	return &o, nil
}

func scanReview(row rowScanner) (*model.Review, error) {
	var rv model.Review

	err := row.Scan(&rv.ID, &rv.OrderID, &rv.FromUserID, &rv.ToUserID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &rv, nil
}

func zoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

func withOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func vehicleArg(vt *model.VehicleType) *string {
	if vt == nil {
		return nil
	}
	s := string(*vt)
	return &s
}

func ratingArg(rating *int) any {
	if rating == nil {
		return nil
	}
	return *rating
}
