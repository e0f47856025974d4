package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mmeshcher/freight-market/internal/lifecycle"
	"github.com/mmeshcher/freight-market/internal/repository"
	"github.com/mmeshcher/freight-market/internal/service"
	"github.com/mmeshcher/freight-market/internal/validation"
)

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verrs validation.Errors

	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, validationResponse{Message: "Validation error", Errors: verrs})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, service.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, service.ErrAccountSuspended):
		writeMessage(w, http.StatusForbidden, "Account suspended")
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, repository.ErrOrderNotFound):
		writeMessage(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, repository.ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrLoaderNotFound):
		writeMessage(w, http.StatusNotFound, "Loader not found")
	case errors.Is(err, service.ErrCarrierNotFound):
		writeMessage(w, http.StatusNotFound, "Carrier not found")
	case errors.Is(err, repository.ErrUserExists):
		writeMessage(w, http.StatusConflict, "Username or email already exists")
	case errors.Is(err, repository.ErrAssignmentExists):
		writeMessage(w, http.StatusConflict, "Loader is already assigned to this order")
	case errors.Is(err, service.ErrLoaderLimitReached):
		writeMessage(w, http.StatusConflict, "Order already has the requested number of loaders")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(op+" error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON декодирует тело запроса в структуру dst. Поле с неверным JSON-типом
// не прерывает разбор: такие поля возвращаются клиенту вместе с ошибками
// проверки остальных полей.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return false
		}
	}

	typeErrs := fieldTypeErrors(reflect.TypeOf(dst).Elem(), fields)
	if len(typeErrs) == 0 {
		return true
	}

	writeJSON(w, http.StatusBadRequest, validationResponse{
		Message: "Validation error",
		Errors:  mergeFieldErrors(typeErrs, validation.Struct(dst)),
	})
	return false
}

// fieldTypeErrors декодирует каждое поле запроса отдельно и собирает поля,
// значение которых не подходит по типу.
func fieldTypeErrors(t reflect.Type, fields map[string]json.RawMessage) validation.Errors {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out validation.Errors
	for _, k := range keys {
		single, err := json.Marshal(map[string]json.RawMessage{k: fields[k]})
		if err != nil {
			continue
		}

		var typeErr *json.UnmarshalTypeError
		if err := json.Unmarshal(single, reflect.New(t).Interface()); !errors.As(err, &typeErr) {
			continue
		}

		field := typeErr.Field
		if field == "" {
			field = k
		}
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[:i]
		}
		out = append(out, validation.FieldError{Field: field, Message: typeMessage(typeErr.Type)})
	}
	return out
}

func typeMessage(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be an integer"
	case reflect.Float32, reflect.Float64:
		return "must be a number"
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	}
	return "has an invalid type"
}

// mergeFieldErrors объединяет ошибки типов с ошибками проверки тегов.
// Для поля с неверным типом остаётся только ошибка типа.
func mergeFieldErrors(typeErrs validation.Errors, err error) validation.Errors {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return typeErrs
	}

	seen := make(map[string]bool, len(typeErrs))
	for _, fe := range typeErrs {
		seen[fe.Field] = true
	}

	out := append(validation.Errors{}, typeErrs...)
	for _, fe := range verrs {
		if !seen[fe.Field] {
			out = append(out, fe)
		}
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func pathString(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}
