// Пакет service — бизнес-логика Catalog Service.
package service

import (
	"errors"
	"fmt"
)

// Виды ошибок операций сервиса. Любая ошибка, возвращённая CatalogService
// или UserService, содержит в цепочке ровно один из них (проверка через errors.Is).
var (
	// ErrValidation — некорректный ввод; побочных эффектов не было.
	ErrValidation = errors.New("некорректные данные")
	// ErrNotFound — трек или пользователь не найден.
	ErrNotFound = errors.New("не найдено")
	// ErrStorage — ошибка объектного хранилища или выдачи ссылки.
	ErrStorage = errors.New("ошибка объектного хранилища")
	// ErrPersistence — ошибка БД; уже записанные объекты компенсированы.
	ErrPersistence = errors.New("ошибка хранилища каталога")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
