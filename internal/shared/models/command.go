package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"FleetGuard/pkg/validator"
)

var ErrInvalidPayload = errors.New("invalid command payload")

type CommandClass string

const (
	ClassServiceAction     CommandClass = "service-action"
	ClassProcessKill       CommandClass = "process-kill"
	ClassSoftwareUninstall CommandClass = "software-uninstall"
	ClassExtensionRemoval  CommandClass = "extension-removal"
	ClassSystemAction      CommandClass = "system-action"
	ClassPatch             CommandClass = "patch"
	ClassUSBGrant          CommandClass = "usb-grant"
)

// QueueClasses классы, которые проходят через очередь команд (USB выдается отдельным хранилищем грантов)
var QueueClasses = []CommandClass{
	ClassServiceAction,
	ClassProcessKill,
	ClassSoftwareUninstall,
	ClassExtensionRemoval,
	ClassSystemAction,
	ClassPatch,
}

func (c CommandClass) Valid() bool {
	if c == ClassUSBGrant {
		return true
	}
	return c.Queued()
}

// Queued возвращает true для классов, которые хранятся в очереди команд
func (c CommandClass) Queued() bool {
	for _, class := range QueueClasses {
		if class == c {
			return true
		}
	}
	return false
}

// ConsumeOnRead возвращает true для классов, где выборка атомарно очищает очередь
func (c CommandClass) ConsumeOnRead() bool {
	return c == ClassSoftwareUninstall || c == ClassExtensionRemoval
}

type ServiceVerb string

const (
	ServiceStart   ServiceVerb = "start"
	ServiceStop    ServiceVerb = "stop"
	ServiceRestart ServiceVerb = "restart"
	ServiceDisable ServiceVerb = "disable"
	ServiceDelete  ServiceVerb = "delete"
)

type KillMode string

const (
	KillOnce       KillMode = "once"
	KillPersistent KillMode = "persistent"
)

// ParseKillMode принимает также "forever", так режим называл первый дашборд
func ParseKillMode(mode string) (KillMode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", string(KillOnce):
		return KillOnce, nil
	case string(KillPersistent), "forever":
		return KillPersistent, nil
	default:
		return "", fmt.Errorf("%w: unknown kill mode %q", ErrInvalidPayload, mode)
	}
}

type SystemVerb string

const (
	SystemShutdown   SystemVerb = "shutdown"
	SystemRestart    SystemVerb = "restart"
	SystemLockUser   SystemVerb = "lock-user"
	SystemUnlockUser SystemVerb = "unlock-user"
)

// Payload параметры команды конкретного класса
type Payload interface {
	Class() CommandClass
	// Identity поля, по которым две команды считаются одинаковыми
	Identity() []string
	Validate() error
}

type ServiceActionPayload struct {
	Service string      `json:"service"`
	Action  ServiceVerb `json:"action"`
}

func (p ServiceActionPayload) Class() CommandClass { return ClassServiceAction }

func (p ServiceActionPayload) Identity() []string {
	return []string{p.Service, string(p.Action)}
}

func (p ServiceActionPayload) Validate() error {
	if !validator.ValidateName(p.Service) {
		return fmt.Errorf("%w: invalid service name %q", ErrInvalidPayload, p.Service)
	}
	if !validator.ValidateOneOf(string(p.Action),
		string(ServiceStart), string(ServiceStop), string(ServiceRestart),
		string(ServiceDisable), string(ServiceDelete)) {
		return fmt.Errorf("%w: unsupported service action %q", ErrInvalidPayload, p.Action)
	}
	return nil
}

// ReservedKillSegment сегмент пути агентских маршрутов processes/pending-kill/:name;
// процесс с таким именем нельзя было бы снять администратору
const ReservedKillSegment = "pending-kill"

type ProcessKillPayload struct {
	Name string   `json:"name"`
	Mode KillMode `json:"mode"`
}

func (p ProcessKillPayload) Class() CommandClass { return ClassProcessKill }

func (p ProcessKillPayload) Identity() []string {
	return []string{p.Name, string(p.Mode)}
}

func (p ProcessKillPayload) Validate() error {
	if !validator.ValidateName(p.Name) || p.Name == ReservedKillSegment {
		return fmt.Errorf("%w: invalid process name %q", ErrInvalidPayload, p.Name)
	}
	if p.Mode != KillOnce && p.Mode != KillPersistent {
		return fmt.Errorf("%w: unknown kill mode %q", ErrInvalidPayload, p.Mode)
	}
	return nil
}

type SoftwareUninstallPayload struct {
	Name string `json:"name"`
}

func (p SoftwareUninstallPayload) Class() CommandClass { return ClassSoftwareUninstall }

func (p SoftwareUninstallPayload) Identity() []string { return []string{p.Name} }

func (p SoftwareUninstallPayload) Validate() error {
	if !validator.ValidateName(p.Name) {
		return fmt.Errorf("%w: invalid software name %q", ErrInvalidPayload, p.Name)
	}
	return nil
}

type ExtensionRemovalPayload struct {
	Name string `json:"name"`
}

func (p ExtensionRemovalPayload) Class() CommandClass { return ClassExtensionRemoval }

func (p ExtensionRemovalPayload) Identity() []string { return []string{p.Name} }

func (p ExtensionRemovalPayload) Validate() error {
	if !validator.ValidateName(p.Name) {
		return fmt.Errorf("%w: invalid extension id %q", ErrInvalidPayload, p.Name)
	}
	return nil
}

type SystemActionPayload struct {
	Action SystemVerb `json:"action"`
}

func (p SystemActionPayload) Class() CommandClass { return ClassSystemAction }

func (p SystemActionPayload) Identity() []string { return []string{string(p.Action)} }

func (p SystemActionPayload) Validate() error {
	if !validator.ValidateOneOf(string(p.Action),
		string(SystemShutdown), string(SystemRestart),
		string(SystemLockUser), string(SystemUnlockUser)) {
		return fmt.Errorf("%w: unsupported system action %q", ErrInvalidPayload, p.Action)
	}
	return nil
}

// PatchPayload у патча одна идентичность на устройство
type PatchPayload struct{}

func (p PatchPayload) Class() CommandClass { return ClassPatch }

func (p PatchPayload) Identity() []string { return nil }

func (p PatchPayload) Validate() error { return nil }

// DecodePayload разбирает JSON параметров в типизированный payload класса
func DecodePayload(class CommandClass, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var (
		payload Payload
		err     error
	)

	switch class {
	case ClassServiceAction:
		var p ServiceActionPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case ClassProcessKill:
		var p struct {
			Name string `json:"name"`
			Mode string `json:"mode"`
		}
		if err = json.Unmarshal(raw, &p); err != nil {
			break
		}
		mode, modeErr := ParseKillMode(p.Mode)
		if modeErr != nil {
			return nil, modeErr
		}
		payload = ProcessKillPayload{Name: p.Name, Mode: mode}
	case ClassSoftwareUninstall:
		var p SoftwareUninstallPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case ClassExtensionRemoval:
		var p ExtensionRemovalPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case ClassSystemAction:
		var p SystemActionPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case ClassPatch:
		payload = PatchPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown command class %q", ErrInvalidPayload, class)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}
