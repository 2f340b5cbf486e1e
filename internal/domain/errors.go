package domain

import "errors"

// Виды ошибок ядра. Хранилища заворачивают их через fmt.Errorf("...: %w", ...),
// граница HTTP разбирает через errors.Is и превращает в статус-коды.
var (
	// ErrNotFound - пост или комментарий не существует, либо родительский
	// комментарий недостижим в рамках указанного поста.
	ErrNotFound = errors.New("not found")

	// ErrForbidden - актор не является автором ресурса и пытается выполнить
	// операцию, доступную только владельцу, либо тема заблокирована.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput - не заполнено обязательное поле или параметры запроса
	// не проходят валидацию.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict - нарушение уникальности лайка, которое не перехватила
	// логика тоггла. Наружу не выходит: тоггл сводит его к ветке
	// "лайк уже существует".
	ErrConflict = errors.New("conflict")
)
