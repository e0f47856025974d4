package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/freight-market/internal/model"
)

// CreateOrder создаёт заказ от имени текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var draft model.OrderDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	o, err := h.service.CreateOrder(r.Context(), p.ID, draft)
	if err != nil {
		h.writeServiceError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetClientOrders возвращает заказы текущего пользователя как клиента.
func (h *Handler) GetClientOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListClientOrders(r.Context(), p.ID)
	if err != nil {
		h.writeServiceError(w, r, "list client orders", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetCarrierOrders возвращает заказы, назначенные текущему перевозчику.
func (h *Handler) GetCarrierOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListCarrierOrders(r.Context(), p.ID)
	if err != nil {
		h.writeServiceError(w, r, "list carrier orders", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetAvailableOrders возвращает заказы, ожидающие перевозчика.
func (h *Handler) GetAvailableOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAvailableOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list available orders", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// AdminListOrders возвращает все заказы.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAllOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetOrder возвращает заказ участнику или администратору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), p, id)
	if err != nil {
		h.writeServiceError(w, r, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrder применяет частичное обновление заказа.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var patch model.OrderPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	o, err := h.service.UpdateOrder(r.Context(), p, id, patch)
	if err != nil {
		h.writeServiceError(w, r, "update order", err)
		return
	}

	if patch.Status != nil {
		h.logger.Info("order status changed",
			zap.Int64("orderID", o.ID),
			zap.Int64("userID", p.ID),
			zap.String("status", string(o.Status)),
		)
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// AcceptOrder назначает текущего перевозчика на заказ.
func (h *Handler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.AcceptOrder(r.Context(), p, id)
	if err != nil {
		h.writeServiceError(w, r, "accept order", err)
		return
	}

	h.logger.Info("order accepted", zap.Int64("orderID", o.ID), zap.Int64("carrierID", p.ID))
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// AssignLoader назначает грузчика на заказ.
func (h *Handler) AssignLoader(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loaderID, ok := pathID(w, r, "loaderId")
	if !ok {
		return
	}

	a, err := h.service.AssignLoader(r.Context(), p, orderID, loaderID)
	if err != nil {
		h.writeServiceError(w, r, "assign loader", err)
		return
	}

	writeJSON(w, http.StatusCreated, assignmentResponse{ID: a.ID, OrderID: a.OrderID, LoaderID: a.LoaderID})
}

// GetOrderLoaders возвращает идентификаторы грузчиков заказа.
func (h *Handler) GetOrderLoaders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ids, err := h.service.ListOrderLoaders(r.Context(), p, id)
	if err != nil {
		h.writeServiceError(w, r, "list order loaders", err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	writeJSON(w, http.StatusOK, ids)
}
