// redact — маскирование чувствительных значений в логах.
// Токены и пароли в логи не попадают никогда; для отладочной привязки
// к конкретному токену используется короткий префикс его хэша.
package redact

import "strings"

// Token возвращает плейсхолдер вместо значения токена.
func Token() string { return "[REDACTED_TOKEN]" }

// Password возвращает плейсхолдер вместо пароля.
func Password() string { return "[REDACTED_PASSWORD]" }

// Hash оставляет от хэша токена первые 8 символов — достаточно,
// чтобы сопоставить записи логов между собой, но бесполезно для подбора.
func Hash(h string) string {
	if len(h) <= 8 {
		return h
	}

	return h[:8] + "…"
}

// Device обрезает пользовательский device descriptor до разумной длины:
// поле свободного формата, клиент может прислать что угодно.
func Device(d string) string {
	d = strings.TrimSpace(d)
	if len(d) > 64 {
		return d[:64] + "…"
	}

	return d
}
