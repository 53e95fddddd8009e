// Package validation содержит функции валидации входных данных.
package validation

// IsValidUserID проверяет корректность идентификатора пользователя:
// непустая строка до 64 символов из букв, цифр, дефиса и подчёркивания.
func IsValidUserID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}

	for _, ch := range id {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_':
		default:
			return false
		}
	}

	return true
}
