// Package repository содержит реализации хранилища маркетплейса:
// в памяти процесса и в PostgreSQL.
package repository

import "errors"

var (
	// ErrUserExists возвращается, если имя пользователя или email уже заняты.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderTaken возвращается, если заказ уже взят другим перевозчиком или
	// больше не ожидает перевозчика.
	ErrOrderTaken = errors.New("order already taken")
	// ErrAssignmentExists возвращается при повторном назначении грузчика на заказ.
	ErrAssignmentExists = errors.New("loader already assigned to order")
	// ErrLoaderLimitReached возвращается, если на заказ уже назначено needLoaders грузчиков.
	ErrLoaderLimitReached = errors.New("order already has the requested number of loaders")
)
