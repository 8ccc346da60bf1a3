package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	shared "FleetGuard/internal/shared/models"
)

var ErrMalformedReport = errors.New("completion report must be a list or an object")

// CompletionRef ссылка на выполненную команду: по id, по ключу дедупликации или по значению payload
type CompletionRef struct {
	ID       string
	DedupKey string
	Payload  shared.Payload
}

// Matches проверяет, что ссылка указывает на запись
func (c CompletionRef) Matches(record *CommandRecord) bool {
	if c.ID != "" && c.ID == record.ID {
		return true
	}
	if c.DedupKey != "" && c.DedupKey == record.DedupKey {
		return true
	}
	if c.Payload != nil && c.Payload.Class() == record.Class {
		return DedupKey(record.DeviceID, c.Payload) == record.DedupKey
	}
	return false
}

// ParseCompletionRefs разбирает отчет агента: список или одиночный объект.
// Элементы списка могут быть строкой (id или dedup_key), объектом с id/dedup_key,
// полной записью команды или самим payload класса
func ParseCompletionRefs(class shared.CommandClass, body []byte) ([]CompletionRef, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrMalformedReport
	}

	var items []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
	case '{':
		items = []json.RawMessage{body}
	default:
		return nil, ErrMalformedReport
	}

	refs := make([]CompletionRef, 0, len(items))
	for i, item := range items {
		ref, err := parseCompletionRef(class, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		refs = append(refs, ref)
	}

	return refs, nil
}

func parseCompletionRef(class shared.CommandClass, item json.RawMessage) (CompletionRef, error) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return CompletionRef{}, ErrMalformedReport
	}

	switch item[0] {
	case '"':
		var key string
		if err := json.Unmarshal(item, &key); err != nil {
			return CompletionRef{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
		return CompletionRef{ID: key, DedupKey: key}, nil
	case '{':
	default:
		return CompletionRef{}, ErrMalformedReport
	}

	var ref struct {
		ID       string          `json:"id"`
		DedupKey string          `json:"dedup_key"`
		Payload  json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(item, &ref); err != nil {
		return CompletionRef{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	if ref.ID != "" || ref.DedupKey != "" {
		return CompletionRef{ID: ref.ID, DedupKey: ref.DedupKey}, nil
	}

	raw := ref.Payload
	if len(raw) == 0 {
		raw = item
	}

	payload, err := shared.DecodePayload(class, raw)
	if err != nil {
		return CompletionRef{}, err
	}

	return CompletionRef{Payload: payload}, nil
}
