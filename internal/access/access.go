// Package access содержит правила доступа к заказам и учётным записям.
package access

import "github.com/mmeshcher/freight-market/internal/model"

// Principal описывает аутентифицированного пользователя, выполняющего запрос.
type Principal struct {
	ID   int64
	Role model.Role
}

// IsAdmin сообщает, является ли пользователь администратором.
func IsAdmin(p Principal) bool {
	return p.Role == model.RoleAdmin
}

// HasRole сообщает, обладает ли пользователь одной из указанных ролей.
func HasRole(p Principal, roles ...model.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// IsParticipant сообщает, является ли пользователь клиентом или назначенным перевозчиком заказа.
func IsParticipant(userID int64, o *model.Order) bool {
	if o.ClientID == userID {
		return true
	}
	return o.CarrierID != nil && *o.CarrierID == userID
}

// CanViewOrder разрешает чтение заказа участникам и администратору.
func CanViewOrder(p Principal, o *model.Order) bool {
	return IsAdmin(p) || IsParticipant(p.ID, o)
}

// CanEditOrder разрешает изменение заказа участникам и администратору.
func CanEditOrder(p Principal, o *model.Order) bool {
	return CanViewOrder(p, o)
}

// CanAssignLoader разрешает назначение грузчиков клиенту заказа и администратору.
func CanAssignLoader(p Principal, o *model.Order) bool {
	return IsAdmin(p) || o.ClientID == p.ID
}

// CanReview разрешает оставить отзыв по заказу только его участникам.
func CanReview(p Principal, o *model.Order) bool {
	return IsParticipant(p.ID, o)
}
