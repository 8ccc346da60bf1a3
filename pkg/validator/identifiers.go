package validator

import (
	"strings"
	"unicode"
)

const (
	maxDeviceIDLength = 128
	maxNameLength     = 256
)

// ValidateDeviceID проверяет ключ устройства (hostname-подобная строка)
func ValidateDeviceID(deviceID string) bool {
	if deviceID == "" || len(deviceID) > maxDeviceIDLength {
		return false
	}

	for _, r := range deviceID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}

	return true
}

// ValidateName проверяет имя сервиса, процесса, пакета или расширения
func ValidateName(name string) bool {
	if strings.TrimSpace(name) == "" || len(name) > maxNameLength {
		return false
	}

	// ведущий "-" утилита приняла бы за флаг
	if strings.HasPrefix(strings.TrimSpace(name), "-") {
		return false
	}

	// Имя уходит в аргументы команд на агенте, управляющие символы и разделители путей запрещены
	for _, r := range name {
		if unicode.IsControl(r) || r == '/' || r == '\\' {
			return false
		}
	}

	return true
}

// ValidateOneOf возвращает true если value входит в allowed
func ValidateOneOf(value string, allowed ...string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
