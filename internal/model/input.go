package model

// UserDraft содержит данные регистрации новой учётной записи.
type UserDraft struct {
	Username       string  `json:"username" validate:"required,min=3,max=64"`
	Password       string  `json:"password" validate:"required,min=6,max=72"`
	Email          string  `json:"email" validate:"required,email"`
	FirstName      string  `json:"firstName" validate:"required,max=100"`
	LastName       string  `json:"lastName" validate:"required,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	Role           Role    `json:"role" validate:"omitempty,oneof=client carrier loader"`
	ProfilePicture *string `json:"profilePicture"`

	WorkAreas       []string     `json:"workAreas" validate:"omitempty,dive,required"`
	VehicleType     *VehicleType `json:"vehicleType" validate:"omitempty,oneof=pickup box_truck"`
	VehicleCapacity *string      `json:"vehicleCapacity"`
	VehiclePhoto    *string      `json:"vehiclePhoto"`
	Description     *string      `json:"description"`
}

// ProfilePatch содержит изменяемые пользователем поля профиля.
// Роль, статус и рейтинг через профиль не меняются.
type ProfilePatch struct {
	Email          *string `json:"email" validate:"omitempty,email"`
	FirstName      *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	ProfilePicture *string `json:"profilePicture"`

	WorkAreas       *[]string    `json:"workAreas" validate:"omitempty,dive,required"`
	VehicleType     *VehicleType `json:"vehicleType" validate:"omitempty,oneof=pickup box_truck"`
	VehicleCapacity *string      `json:"vehicleCapacity"`
	VehiclePhoto    *string      `json:"vehiclePhoto"`
	Description     *string      `json:"description"`
}

// OrderDraft содержит данные новой заявки. Статус и перевозчик
// назначаются сервером и в заявку не входят.
type OrderDraft struct {
	CategoryType    CategoryType `json:"categoryType" validate:"required,oneof=furniture electronics appliances boxes other"`
	Description     string       `json:"description" validate:"required"`
	PickupAddress   string       `json:"pickupAddress" validate:"required"`
	DeliveryAddress string       `json:"deliveryAddress" validate:"required"`
	ScheduledDate   string       `json:"scheduledDate" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	VehicleType     VehicleType  `json:"vehicleType" validate:"required,oneof=pickup box_truck"`
	NeedLoaders     *int         `json:"needLoaders" validate:"required,min=0,max=2"`
	Photos          []string     `json:"photos" validate:"omitempty,dive,required"`
	Price           *int64       `json:"price" validate:"omitempty,min=0"`
}

// OrderPatch содержит частичное обновление заказа. Nil-поля не меняются.
type OrderPatch struct {
	// ClientID неизменяем; присутствие поля в запросе считается ошибкой.
	ClientID  *int64       `json:"clientId"`
	CarrierID *int64       `json:"carrierId" validate:"omitempty,gt=0"`
	Status    *OrderStatus `json:"status" validate:"omitempty,oneof=pending accepted in_progress completed cancelled"`

	CategoryType    *CategoryType `json:"categoryType" validate:"omitempty,oneof=furniture electronics appliances boxes other"`
	Description     *string       `json:"description" validate:"omitempty,min=1"`
	PickupAddress   *string       `json:"pickupAddress" validate:"omitempty,min=1"`
	DeliveryAddress *string       `json:"deliveryAddress" validate:"omitempty,min=1"`
	ScheduledDate   *string       `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	VehicleType     *VehicleType  `json:"vehicleType" validate:"omitempty,oneof=pickup box_truck"`
	NeedLoaders     *int          `json:"needLoaders" validate:"omitempty,min=0,max=2"`
	Photos          *[]string     `json:"photos" validate:"omitempty,dive,required"`
	Price           *int64        `json:"price" validate:"omitempty,min=0"`
}

// ReviewDraft содержит данные нового отзыва. Автор берётся из сессии.
type ReviewDraft struct {
	OrderID  int64   `json:"orderId" validate:"gt=0"`
	ToUserID int64   `json:"toUserId" validate:"gt=0"`
	Rating   int     `json:"rating" validate:"min=1,max=5"`
	Comment  *string `json:"comment" validate:"omitempty,max=2000"`
}

// StatusChange содержит новый статус учётной записи.
type StatusChange struct {
	Status UserStatus `json:"status" validate:"required,oneof=active pending suspended"`
}
