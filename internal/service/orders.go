package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/freight-market/internal/access"
	"github.com/mmeshcher/freight-market/internal/lifecycle"
	"github.com/mmeshcher/freight-market/internal/model"
	"github.com/mmeshcher/freight-market/internal/repository"
	"github.com/mmeshcher/freight-market/internal/validation"
)

// CreateOrder создаёт заказ клиента в статусе pending без перевозчика.
func (s *Service) CreateOrder(ctx context.Context, clientID int64, draft model.OrderDraft) (*model.Order, error) {
	if err := validation.Struct(draft); err != nil {
		return nil, err
	}

	scheduled, err := time.Parse(time.RFC3339, draft.ScheduledDate)
	if err != nil {
		return nil, validation.Errors{{Field: "scheduledDate", Message: "must be an RFC 3339 timestamp"}}
	}

	return s.repo.CreateOrder(ctx, &model.Order{
		ClientID:        clientID,
		CategoryType:    draft.CategoryType,
		Description:     draft.Description,
		PickupAddress:   draft.PickupAddress,
		DeliveryAddress: draft.DeliveryAddress,
		ScheduledDate:   scheduled,
		VehicleType:     draft.VehicleType,
		NeedLoaders:     *draft.NeedLoaders,
		Photos:          draft.Photos,
		Status:          model.OrderStatusPending,
		Price:           draft.Price,
	})
}

// GetOrder возвращает заказ, если пользователь участвует в нём или является администратором.
// Отсутствие заказа проверяется раньше прав доступа.
func (s *Service) GetOrder(ctx context.Context, p access.Principal, id int64) (*model.Order, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewOrder(p, o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListClientOrders возвращает заказы клиента.
func (s *Service) ListClientOrders(ctx context.Context, clientID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByClient(ctx, clientID)
}

// ListCarrierOrders возвращает заказы, назначенные перевозчику.
func (s *Service) ListCarrierOrders(ctx context.Context, carrierID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByCarrier(ctx, carrierID)
}

// ListAllOrders возвращает все заказы.
func (s *Service) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}

// ListAvailableOrders возвращает заказы, ожидающие перевозчика.
func (s *Service) ListAvailableOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrdersByStatus(ctx, model.OrderStatusPending)
}

// UpdateOrder применяет частичное обновление заказа. Все проверки выполняются
// до записи: наличие заказа, права, корректность полей, допустимость перехода
// статуса и существование перевозчика.
func (s *Service) UpdateOrder(ctx context.Context, p access.Principal, id int64, patch model.OrderPatch) (*model.Order, error) {
	o, err := s.GetOrder(ctx, p, id)
	if err != nil {
		return nil, err
	}

	var extra []validation.FieldError
	if patch.ClientID != nil {
		extra = append(extra, validation.FieldError{Field: "clientId", Message: "cannot be changed"})
	}
	if patch.NeedLoaders != nil {
		loaders, err := s.repo.ListLoaderIDs(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if *patch.NeedLoaders < len(loaders) {
			extra = append(extra, validation.FieldError{
				Field:   "needLoaders",
				Message: fmt.Sprintf("must be at least %d, the number of assigned loaders", len(loaders)),
			})
		}
	}
	if err := validation.Join(validation.Struct(patch), extra...); err != nil {
		return nil, err
	}

	next := o.Status
	if patch.Status != nil {
		next = *patch.Status
	}
	if err := lifecycle.CanTransition(o.Status, next); err != nil {
		return nil, err
	}

	carrierID, err := resolveCarrier(o, patch.CarrierID, next)
	if err != nil {
		return nil, err
	}
	if carrierID != nil && o.CarrierID == nil {
		if err := s.checkCarrier(ctx, *carrierID); err != nil {
			return nil, err
		}
	}

	if err := applyOrderPatch(o, patch); err != nil {
		return nil, err
	}
	o.Status = next
	o.CarrierID = carrierID

	updated, err := s.repo.UpdateOrder(ctx, o)
	if errors.Is(err, repository.ErrOrderTaken) {
		return nil, fmt.Errorf("%w: order %d already has a carrier", lifecycle.ErrInvalidTransition, id)
	}
	return updated, err
}

// AcceptOrder назначает вызывающего перевозчика на ожидающий заказ.
func (s *Service) AcceptOrder(ctx context.Context, p access.Principal, id int64) (*model.Order, error) {
	if p.Role != model.RoleCarrier {
		return nil, ErrForbidden
	}

	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.CarrierID != nil {
		if *o.CarrierID == p.ID {
			return o, nil
		}
		return nil, fmt.Errorf("%w: order %d already has a carrier", lifecycle.ErrInvalidTransition, o.ID)
	}
	if err := lifecycle.CanTransition(o.Status, model.OrderStatusAccepted); err != nil {
		return nil, err
	}

	accepted, err := s.repo.AcceptOrder(ctx, o.ID, p.ID)
	if !errors.Is(err, repository.ErrOrderTaken) {
		return accepted, err
	}

	// Заказ успели взять между чтением и записью.
	current, err := s.repo.GetOrderByID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if current.CarrierID != nil && *current.CarrierID == p.ID {
		return current, nil
	}
	return nil, fmt.Errorf("%w: order %d already has a carrier", lifecycle.ErrInvalidTransition, o.ID)
}

// resolveCarrier возвращает перевозчика заказа после обновления. Перевозчик
// назначается один раз и только вместе с переходом pending → accepted.
func resolveCarrier(o *model.Order, requested *int64, next model.OrderStatus) (*int64, error) {
	current := o.CarrierID

	if requested != nil {
		switch {
		case current != nil && *current != *requested:
			return nil, fmt.Errorf("%w: carrier of order %d cannot be changed", lifecycle.ErrInvalidTransition, o.ID)
		case current == nil && (o.Status != model.OrderStatusPending || next != model.OrderStatusAccepted):
			return nil, fmt.Errorf("%w: a carrier is assigned only with pending → accepted", lifecycle.ErrInvalidTransition)
		case current == nil:
			id := *requested
			current = &id
		}
	}

	if lifecycle.RequiresCarrier(next) && current == nil {
		return nil, fmt.Errorf("%w: status %s requires a carrier", lifecycle.ErrInvalidTransition, next)
	}

	return current, nil
}

func (s *Service) checkCarrier(ctx context.Context, id int64) error {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrCarrierNotFound
		}
		return err
	}
	if u.Role != model.RoleCarrier {
		return ErrCarrierNotFound
	}
	return nil
}

func applyOrderPatch(o *model.Order, patch model.OrderPatch) error {
	if patch.CategoryType != nil {
		o.CategoryType = *patch.CategoryType
	}
	if patch.Description != nil {
		o.Description = *patch.Description
	}
	if patch.PickupAddress != nil {
		o.PickupAddress = *patch.PickupAddress
	}
	if patch.DeliveryAddress != nil {
		o.DeliveryAddress = *patch.DeliveryAddress
	}
	if patch.ScheduledDate != nil {
		t, err := time.Parse(time.RFC3339, *patch.ScheduledDate)
		if err != nil {
			return validation.Errors{{Field: "scheduledDate", Message: "must be an RFC 3339 timestamp"}}
		}
		o.ScheduledDate = t
	}
	if patch.VehicleType != nil {
		o.VehicleType = *patch.VehicleType
	}
	if patch.NeedLoaders != nil {
		o.NeedLoaders = *patch.NeedLoaders
	}
	if patch.Photos != nil {
		o.Photos = *patch.Photos
	}
	if patch.Price != nil {
		o.Price = patch.Price
	}
	return nil
}

// AssignLoader назначает грузчика на заказ. Назначать может клиент заказа или администратор.
func (s *Service) AssignLoader(ctx context.Context, p access.Principal, orderID, loaderID int64) (*model.Assignment, error) {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !access.CanAssignLoader(p, o) {
		return nil, ErrForbidden
	}

	loader, err := s.repo.GetUserByID(ctx, loaderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrLoaderNotFound
		}
		return nil, err
	}
	if loader.Role != model.RoleLoader {
		return nil, ErrLoaderNotFound
	}

	return s.repo.AssignLoader(ctx, orderID, loaderID)
}

// ListOrderLoaders возвращает идентификаторы грузчиков заказа. Права те же, что на чтение заказа.
func (s *Service) ListOrderLoaders(ctx context.Context, p access.Principal, orderID int64) ([]int64, error) {
	if _, err := s.GetOrder(ctx, p, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListLoaderIDs(ctx, orderID)
}
