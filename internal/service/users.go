package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/freight-market/internal/access"
	"github.com/mmeshcher/freight-market/internal/model"
	"github.com/mmeshcher/freight-market/internal/repository"
	"github.com/mmeshcher/freight-market/internal/validation"
)

// Register регистрирует нового клиента, перевозчика или грузчика.
// Учётную запись администратора зарегистрировать нельзя.
func (s *Service) Register(ctx context.Context, draft model.UserDraft) (*model.User, error) {
	if err := validation.Struct(draft); err != nil {
		return nil, err
	}

	role := draft.Role
	if role == "" {
		role = model.RoleClient
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(draft.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:       draft.Username,
		Email:          draft.Email,
		PasswordHash:   hash,
		FirstName:      draft.FirstName,
		LastName:       draft.LastName,
		Phone:          draft.Phone,
		Role:           role,
		Status:         model.UserStatusActive,
		ProfilePicture: draft.ProfilePicture,
	}
	if role == model.RoleCarrier || role == model.RoleLoader {
		u.WorkAreas = draft.WorkAreas
		u.Description = draft.Description
	}
	if role == model.RoleCarrier {
		u.VehicleType = draft.VehicleType
		u.VehicleCapacity = draft.VehicleCapacity
		u.VehiclePhoto = draft.VehiclePhoto
	}

	return s.repo.CreateUser(ctx, u)
}

// Authenticate проверяет имя пользователя и пароль и возвращает учётную запись.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if u.Status == model.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// CurrentUser возвращает учётную запись владельца сессии.
func (s *Service) CurrentUser(ctx context.Context, p access.Principal) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile меняет поля профиля владельца сессии.
// Поля работы доступны тем же ролям, что и при регистрации.
func (s *Service) UpdateProfile(ctx context.Context, p access.Principal, patch model.ProfilePatch) (*model.User, error) {
	u, err := s.CurrentUser(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := validation.Join(validation.Struct(patch), roleFieldErrors(u.Role, patch)...); err != nil {
		return nil, err
	}

	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = patch.Phone
	}
	if patch.ProfilePicture != nil {
		u.ProfilePicture = patch.ProfilePicture
	}
	if patch.WorkAreas != nil {
		u.WorkAreas = *patch.WorkAreas
	}
	if patch.VehicleType != nil {
		u.VehicleType = patch.VehicleType
	}
	if patch.VehicleCapacity != nil {
		u.VehicleCapacity = patch.VehicleCapacity
	}
	if patch.VehiclePhoto != nil {
		u.VehiclePhoto = patch.VehiclePhoto
	}
	if patch.Description != nil {
		u.Description = patch.Description
	}

	return s.repo.UpdateUser(ctx, u)
}

func roleFieldErrors(role model.Role, patch model.ProfilePatch) []validation.FieldError {
	var out []validation.FieldError
	reject := func(field, message string) {
		out = append(out, validation.FieldError{Field: field, Message: message})
	}

	if role != model.RoleCarrier && role != model.RoleLoader {
		if patch.WorkAreas != nil {
			reject("workAreas", "is available only to carriers and loaders")
		}
		if patch.Description != nil {
			reject("description", "is available only to carriers and loaders")
		}
	}
	if role != model.RoleCarrier {
		if patch.VehicleType != nil {
			reject("vehicleType", "is available only to carriers")
		}
		if patch.VehicleCapacity != nil {
			reject("vehicleCapacity", "is available only to carriers")
		}
		if patch.VehiclePhoto != nil {
			reject("vehiclePhoto", "is available only to carriers")
		}
	}
	return out
}

// ListCarriers возвращает перевозчиков; непустой location оставляет только
// работающих в этом районе.
func (s *Service) ListCarriers(ctx context.Context, location string) ([]model.User, error) {
	return s.repo.ListUsersByRole(ctx, model.RoleCarrier, location)
}

// ListLoaders возвращает грузчиков; непустой location оставляет только
// работающих в этом районе.
func (s *Service) ListLoaders(ctx context.Context, location string) ([]model.User, error) {
	return s.repo.ListUsersByRole(ctx, model.RoleLoader, location)
}

// ListAllUsers возвращает всех пользователей.
func (s *Service) ListAllUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

// SetUserStatus меняет статус учётной записи. Доступно только администратору;
// пользователи не удаляются, а блокируются.
func (s *Service) SetUserStatus(ctx context.Context, p access.Principal, id int64, change model.StatusChange) (*model.User, error) {
	if !access.IsAdmin(p) {
		return nil, ErrForbidden
	}
	if err := validation.Struct(change); err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Status = change.Status
	return s.repo.UpdateUser(ctx, u)
}

// EnsureAdmin создаёт учётную запись администратора, если её ещё нет.
// Пустое имя пользователя означает, что администратор не настроен.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, email string) (*model.User, error) {
	if username == "" {
		return nil, nil
	}

	existing, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		if existing.Role != model.RoleAdmin {
			return nil, fmt.Errorf("%w: %s is not an admin", repository.ErrUserExists, username)
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	if len(password) < 6 {
		return nil, validation.Errors{{Field: "password", Message: "must be at least 6 characters long"}}
	}
	if email == "" {
		email = username + "@localhost"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "Admin",
		Role:         model.RoleAdmin,
		Status:       model.UserStatusActive,
	})
}
