package domain

import (
	"encoding/json"
	"sort"
	"time"

	shared "FleetGuard/internal/shared/models"
)

// Command команда, полученная агентом из очереди сервера
type Command struct {
	ID            string              `json:"id"`
	DedupKey      string              `json:"dedup_key"`
	Class         shared.CommandClass `json:"class"`
	Payload       shared.Payload      `json:"payload"`
	CreatedAt     time.Time           `json:"created_at"`
	DeliveryCount int                 `json:"delivery_count"`
}

func NewCommand(id string, payload shared.Payload, createdAt time.Time) Command {
	return Command{
		ID:        id,
		Class:     payload.Class(),
		Payload:   payload,
		CreatedAt: createdAt,
	}
}

func (c *Command) UnmarshalJSON(data []byte) error {
	type alias Command
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := shared.DecodePayload(c.Class, aux.Payload)
	if err != nil {
		return err
	}

	c.Payload = payload
	return nil
}

// Ref ссылка на команду для отчета о выполнении
func (c Command) Ref() CompletionRef {
	return CompletionRef{ID: c.ID, DedupKey: c.DedupKey}
}

type CompletionRef struct {
	ID       string `json:"id"`
	DedupKey string `json:"dedup_key,omitempty"`
}

// SortOldestFirst упорядочивает команды по времени постановки, порядок равных сохраняется
func SortOldestFirst(commands []Command) {
	sort.SliceStable(commands, func(i, j int) bool {
		return commands[i].CreatedAt.Before(commands[j].CreatedAt)
	})
}
