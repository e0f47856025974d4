package handler

import (
	"time"

	"github.com/mmeshcher/freight-market/internal/model"
)

type userResponse struct {
	ID              int64    `json:"id"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Phone           *string  `json:"phone"`
	Role            string   `json:"role"`
	Status          string   `json:"status"`
	ProfilePicture  *string  `json:"profilePicture"`
	WorkAreas       []string `json:"workAreas"`
	VehicleType     *string  `json:"vehicleType"`
	VehicleCapacity *string  `json:"vehicleCapacity"`
	VehiclePhoto    *string  `json:"vehiclePhoto"`
	Description     *string  `json:"description"`
	Rating          *int     `json:"rating"`
	CreatedAt       string   `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Phone:           u.Phone,
		Role:            string(u.Role),
		Status:          string(u.Status),
		ProfilePicture:  u.ProfilePicture,
		WorkAreas:       u.WorkAreas,
		VehicleCapacity: u.VehicleCapacity,
		VehiclePhoto:    u.VehiclePhoto,
		Description:     u.Description,
		Rating:          u.Rating,
		CreatedAt:       u.CreatedAt.Format(time.RFC3339Nano),
	}
	if resp.WorkAreas == nil {
		resp.WorkAreas = []string{}
	}
	if u.VehicleType != nil {
		vt := string(*u.VehicleType)
		resp.VehicleType = &vt
	}
	return resp
}

func toUserResponses(users []model.User) []userResponse {
	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp
}

type orderResponse struct {
	ID              int64    `json:"id"`
	ClientID        int64    `json:"clientId"`
	CarrierID       *int64   `json:"carrierId"`
	CategoryType    string   `json:"categoryType"`
	Description     string   `json:"description"`
	PickupAddress   string   `json:"pickupAddress"`
	DeliveryAddress string   `json:"deliveryAddress"`
	ScheduledDate   string   `json:"scheduledDate"`
	VehicleType     string   `json:"vehicleType"`
	NeedLoaders     int      `json:"needLoaders"`
	Photos          []string `json:"photos"`
	Status          string   `json:"status"`
	Price           *int64   `json:"price"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       *string  `json:"updatedAt"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		ClientID:        o.ClientID,
		CarrierID:       o.CarrierID,
		CategoryType:    string(o.CategoryType),
		Description:     o.Description,
		PickupAddress:   o.PickupAddress,
		DeliveryAddress: o.DeliveryAddress,
		ScheduledDate:   o.ScheduledDate.Format(time.RFC3339Nano),
		VehicleType:     string(o.VehicleType),
		NeedLoaders:     o.NeedLoaders,
		Photos:          o.Photos,
		Status:          string(o.Status),
		Price:           o.Price,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339Nano),
	}
	if resp.Photos == nil {
		resp.Photos = []string{}
	}
	if o.UpdatedAt != nil {
		ts := o.UpdatedAt.Format(time.RFC3339Nano)
		resp.UpdatedAt = &ts
	}
	return resp
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp
}

type assignmentResponse struct {
	ID       int64 `json:"id"`
	OrderID  int64 `json:"orderId"`
	LoaderID int64 `json:"loaderId"`
}

type reviewResponse struct {
	ID         int64   `json:"id"`
	OrderID    int64   `json:"orderId"`
	FromUserID int64   `json:"fromUserId"`
	ToUserID   int64   `json:"toUserId"`
	Rating     int     `json:"rating"`
	Comment    *string `json:"comment"`
	CreatedAt  string  `json:"createdAt"`
}

func toReviewResponse(rv *model.Review) reviewResponse {
	return reviewResponse{
		ID:         rv.ID,
		OrderID:    rv.OrderID,
		FromUserID: rv.FromUserID,
		ToUserID:   rv.ToUserID,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		CreatedAt:  rv.CreatedAt.Format(time.RFC3339Nano),
	}
}
