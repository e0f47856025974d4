// Package lifecycle описывает допустимые переходы между статусами заказа.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/freight-market/internal/model"
)

// ErrInvalidTransition возвращается при попытке недопустимой смены статуса.
var ErrInvalidTransition = errors.New("invalid status transition")

// Transition описывает разрешённую смену статуса.
type Transition struct {
	From model.OrderStatus
	To   model.OrderStatus
}

var transitions = []Transition{
	{From: model.OrderStatusPending, To: model.OrderStatusAccepted},
	{From: model.OrderStatusPending, To: model.OrderStatusCancelled},
	{From: model.OrderStatusAccepted, To: model.OrderStatusInProgress},
	{From: model.OrderStatusAccepted, To: model.OrderStatusCancelled},
	{From: model.OrderStatusInProgress, To: model.OrderStatusCompleted},
}

var allowed = func() map[Transition]bool {
	m := make(map[Transition]bool, len(transitions))
	for _, t := range transitions {
		m[t] = true
	}
	return m
}()

var statuses = map[model.OrderStatus]bool{
	model.OrderStatusPending:    true,
	model.OrderStatusAccepted:   true,
	model.OrderStatusInProgress: true,
	model.OrderStatusCompleted:  true,
	model.OrderStatusCancelled:  true,
}

// IsValidStatus сообщает, входит ли значение в множество статусов заказа.
func IsValidStatus(s model.OrderStatus) bool {
	return statuses[s]
}

// ValidTransitionsFrom возвращает статусы, в которые можно перейти из указанного.
func ValidTransitionsFrom(s model.OrderStatus) []model.OrderStatus {
	var next []model.OrderStatus
	for _, t := range transitions {
		if t.From == s {
			next = append(next, t.To)
		}
	}
	return next
}

// IsTerminal сообщает, является ли статус конечным.
func IsTerminal(s model.OrderStatus) bool {
	return IsValidStatus(s) && len(ValidTransitionsFrom(s)) == 0
}

// RequiresCarrier сообщает, должен ли у заказа в этом статусе быть перевозчик.
func RequiresCarrier(s model.OrderStatus) bool {
	switch s {
	case model.OrderStatusAccepted, model.OrderStatusInProgress, model.OrderStatusCompleted:
		return true
	}
	return false
}

// CanTransition проверяет смену статуса from → to. Повтор текущего статуса допустим.
func CanTransition(from, to model.OrderStatus) error {
	if !IsValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if from == to || allowed[Transition{From: from, To: to}] {
		return nil
	}
	return fmt.Errorf("%w: %s → %s is not allowed, valid transitions from %s: %s",
		ErrInvalidTransition, from, to, from, describe(from))
}

// Transitions возвращает полную таблицу переходов.
func Transitions() []Transition {
	res := make([]Transition, len(transitions))
	copy(res, transitions)
	return res
}

func describe(s model.OrderStatus) string {
	next := ValidTransitionsFrom(s)
	if len(next) == 0 {
		return "none (terminal state)"
	}

	names := make([]string, 0, len(next))
	for _, n := range next {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}
