package handler

import (
	"net/http"

	"github.com/mmeshcher/freight-market/internal/model"
)

// CreateReview сохраняет отзыв текущего пользователя.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var draft model.ReviewDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	rv, err := h.service.CreateReview(r.Context(), p, draft)
	if err != nil {
		h.writeServiceError(w, r, "create review", err)
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(rv))
}

// GetUserReviews возвращает отзывы о пользователе.
func (h *Handler) GetUserReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	reviews, err := h.service.ListUserReviews(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "list reviews", err)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		resp = append(resp, toReviewResponse(&reviews[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
