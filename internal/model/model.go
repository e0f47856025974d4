// Package model содержит доменные сущности маркетплейса грузоперевозок.
package model

import "time"

// Role описывает роль учётной записи.
type Role string

const (
	RoleClient  Role = "client"
	RoleCarrier Role = "carrier"
	RoleLoader  Role = "loader"
	RoleAdmin   Role = "admin"
)

// UserStatus описывает состояние учётной записи.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusPending   UserStatus = "pending"
	UserStatusSuspended UserStatus = "suspended"
)

// VehicleType описывает тип транспортного средства.
type VehicleType string

const (
	VehiclePickup   VehicleType = "pickup"
	VehicleBoxTruck VehicleType = "box_truck"
)

// CategoryType описывает категорию перевозимого груза.
type CategoryType string

const (
	CategoryFurniture   CategoryType = "furniture"
	CategoryElectronics CategoryType = "electronics"
	CategoryAppliances  CategoryType = "appliances"
	CategoryBoxes       CategoryType = "boxes"
	CategoryOther       CategoryType = "other"
)

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// User представляет учётную запись клиента, перевозчика, грузчика или администратора.
type User struct {
	ID             int64
	Username       string
	Email          string
	PasswordHash   []byte
	FirstName      string
	LastName       string
	Phone          *string
	Role           Role
	Status         UserStatus
	ProfilePicture *string

	// Поля профиля перевозчика и грузчика.
	WorkAreas       []string
	VehicleType     *VehicleType
	VehicleCapacity *string
	VehiclePhoto    *string
	Description     *string

	// Rating всегда равен округлённому среднему всех отзывов о пользователе.
	Rating    *int
	CreatedAt time.Time
}

// HasWorkArea сообщает, обслуживает ли пользователь указанную локацию.
func (u *User) HasWorkArea(location string) bool {
	for _, area := range u.WorkAreas {
		if area == location {
			return true
		}
	}
	return false
}

// Order описывает заявку на перевозку.
type Order struct {
	ID              int64
	ClientID        int64
	CarrierID       *int64
	CategoryType    CategoryType
	Description     string
	PickupAddress   string
	DeliveryAddress string
	ScheduledDate   time.Time
	VehicleType     VehicleType
	NeedLoaders     int
	Photos          []string
	Status          OrderStatus
	Price           *int64
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

// Assignment связывает грузчика с заказом.
type Assignment struct {
	ID       int64
	OrderID  int64
	LoaderID int64
}

// Review описывает отзыв одного участника заказа о другом.
type Review struct {
	ID         int64
	OrderID    int64
	FromUserID int64
	ToUserID   int64
	Rating     int
	Comment    *string
	CreatedAt  time.Time
}

// RoundedMean возвращает среднее значение оценок, округлённое до ближайшего целого
// (половина округляется вверх). При отсутствии оценок возвращает nil.
func RoundedMean(sum, count int64) *int {
	if count <= 0 {
		return nil
	}
	v := int((2*sum + count) / (2 * count))
	return &v
}
