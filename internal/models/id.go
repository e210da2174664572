package models

import "github.com/google/uuid"

// NewID возвращает уникальный идентификатор с префиксом типа. UUIDv7 содержит
// метку времени, поэтому идентификаторы упорядочены по времени создания.
func NewID(prefix string) string {
	return prefix + "_" + uuid.Must(uuid.NewV7()).String()
}
