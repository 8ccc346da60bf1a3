package models

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	shared "FleetGuard/internal/shared/models"

	"github.com/zeebo/blake3"
)

type CommandState string

const (
	CommandStatePending   CommandState = "pending"
	CommandStateDelivered CommandState = "delivered"
	CommandStateCompleted CommandState = "completed"
)

// EnqueueStatus результат постановки команды в очередь
type EnqueueStatus string

const (
	EnqueueAccepted     EnqueueStatus = "accepted"
	EnqueueDeduplicated EnqueueStatus = "deduplicated"
)

// CommandRecord одна поставленная в очередь команда для одного устройства
type CommandRecord struct {
	ID              string              `json:"id"`
	DeviceID        string              `json:"device_id"`
	Class           shared.CommandClass `json:"class"`
	Payload         shared.Payload      `json:"payload"`
	DedupKey        string              `json:"dedup_key"`
	State           CommandState        `json:"state"`
	CreatedAt       time.Time           `json:"created_at"`
	DeliveryCount   int                 `json:"delivery_count"`
	LastDeliveredAt *time.Time          `json:"last_delivered_at,omitempty"`
	Seq             uint64              `json:"-"`
}

// Outstanding команда еще не выполнена (pending или delivered)
func (r *CommandRecord) Outstanding() bool {
	return r.State == CommandStatePending || r.State == CommandStateDelivered
}

// Clone возвращает независимую копию записи для отдачи наружу из хранилища
func (r *CommandRecord) Clone() *CommandRecord {
	clone := *r
	if r.LastDeliveredAt != nil {
		delivered := *r.LastDeliveredAt
		clone.LastDeliveredAt = &delivered
	}
	return &clone
}

func (r *CommandRecord) UnmarshalJSON(data []byte) error {
	type alias CommandRecord
	aux := struct {
		*alias
		Payload json.RawMessage `json:"payload"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := shared.DecodePayload(r.Class, aux.Payload)
	if err != nil {
		return err
	}

	r.Payload = payload
	return nil
}

// DedupKey детерминированно выводит ключ дедупликации из устройства, класса и полей идентичности
func DedupKey(deviceID string, payload shared.Payload) string {
	parts := append([]string{deviceID, string(payload.Class())}, payload.Identity()...)

	var b strings.Builder
	for _, part := range parts {
		// длина перед значением, чтобы ("ab","c") и ("a","bc") не совпали
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
		b.WriteByte('|')
	}

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NewCommandRecord собирает запись в состоянии pending
func NewCommandRecord(id, deviceID string, payload shared.Payload, createdAt time.Time) *CommandRecord {
	return &CommandRecord{
		ID:        id,
		DeviceID:  deviceID,
		Class:     payload.Class(),
		Payload:   payload,
		DedupKey:  DedupKey(deviceID, payload),
		State:     CommandStatePending,
		CreatedAt: createdAt,
	}
}

func (r *CommandRecord) String() string {
	return fmt.Sprintf("%s/%s/%s", r.DeviceID, r.Class, r.ID)
}
