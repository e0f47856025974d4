package service

import (
	"context"

	"github.com/mmeshcher/freight-market/internal/access"
	"github.com/mmeshcher/freight-market/internal/model"
	"github.com/mmeshcher/freight-market/internal/validation"
)

// CreateReview сохраняет отзыв участника заказа о другом участнике.
// Рейтинг адресата пересчитывается хранилищем в той же операции.
func (s *Service) CreateReview(ctx context.Context, p access.Principal, draft model.ReviewDraft) (*model.Review, error) {
	var extra []validation.FieldError
	if draft.ToUserID != 0 && draft.ToUserID == p.ID {
		extra = append(extra, validation.FieldError{Field: "toUserId", Message: "must not be the review author"})
	}
	if err := validation.Join(validation.Struct(draft), extra...); err != nil {
		return nil, err
	}

	o, err := s.repo.GetOrderByID(ctx, draft.OrderID)
	if err != nil {
		return nil, err
	}
	if !access.CanReview(p, o) || !access.IsParticipant(draft.ToUserID, o) {
		return nil, ErrForbidden
	}

	return s.repo.CreateReview(ctx, &model.Review{
		OrderID:    o.ID,
		FromUserID: p.ID,
		ToUserID:   draft.ToUserID,
		Rating:     draft.Rating,
		Comment:    draft.Comment,
	})
}

// ListUserReviews возвращает отзывы, адресованные пользователю.
func (s *Service) ListUserReviews(ctx context.Context, userID int64) ([]model.Review, error) {
	return s.repo.ListReviewsForUser(ctx, userID)
}
