package uuidutil

import (
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.New().String()
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewPrefixed возвращает короткий идентификатор вида "req-1a2b3c4d5e6f"
func NewPrefixed(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "-" + id[:12]
}
