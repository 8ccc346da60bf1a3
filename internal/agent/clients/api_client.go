package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FleetGuard/internal/agent/domain"
	"FleetGuard/internal/shared/constants"
	shared "FleetGuard/internal/shared/models"
)

// пути выборки и отчета для классов с подтверждением
var (
	pendingPaths = map[shared.CommandClass]string{
		shared.ClassServiceAction:     "services/pending-actions",
		shared.ClassProcessKill:       "processes/pending-kill",
		shared.ClassSystemAction:      "actions/pending",
		shared.ClassPatch:             "actions/patch-pending",
		shared.ClassSoftwareUninstall: "software/pending-removal",
		shared.ClassExtensionRemoval:  "extensions/pending-removal",
	}
	completedPaths = map[shared.CommandClass]string{
		shared.ClassServiceAction: "services/clear-completed",
		shared.ClassSystemAction:  "actions/clear-completed",
	}
)

// envelope общий формат ответов сервера
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
}

// APIClient HTTP клиент агента к серверу управления
type APIClient struct {
	baseURL  string
	token    string
	deviceID string
	http     *http.Client
}

func NewAPIClient(baseURL, token, deviceID string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = constants.HTTPTimeout
	}

	return &APIClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		deviceID: deviceID,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) DeviceID() string {
	return c.deviceID
}

func (c *APIClient) PushInventory(ctx context.Context, inventory shared.Inventory) error {
	return c.do(ctx, http.MethodPost, c.devicePath("inventory"), inventory, nil)
}

func (c *APIClient) PushReport(ctx context.Context, report *shared.TelemetryReport) error {
	return c.do(ctx, http.MethodPost, c.devicePath("report"), report, nil)
}

func (c *APIClient) PushServices(ctx context.Context, services []shared.ServiceInfo) error {
	return c.do(ctx, http.MethodPost, c.devicePath("services"), nonNil(services), nil)
}

func (c *APIClient) PushSoftware(ctx context.Context, software []shared.SoftwareItem) error {
	return c.do(ctx, http.MethodPost, c.devicePath("software"), nonNil(software), nil)
}

func (c *APIClient) PushExtensions(ctx context.Context, extensions []shared.ExtensionInfo) error {
	return c.do(ctx, http.MethodPost, c.devicePath("extensions"), nonNil(extensions), nil)
}

func (c *APIClient) Whitelist(ctx context.Context) (shared.ExtensionLists, error) {
	return c.extensionLists(ctx, "extension-policy")
}

func (c *APIClient) Blacklist(ctx context.Context) (shared.ExtensionLists, error) {
	return c.extensionLists(ctx, "extension-blacklist")
}

func (c *APIClient) extensionLists(ctx context.Context, path string) (shared.ExtensionLists, error) {
	lists := shared.ExtensionLists{}
	if err := c.do(ctx, http.MethodGet, c.devicePath(path), nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// FetchCommands забирает команды класса; для классов consume-on-read повторный вызов вернет пустой список
func (c *APIClient) FetchCommands(ctx context.Context, class shared.CommandClass) ([]domain.Command, error) {
	path, ok := pendingPaths[class]
	if !ok {
		return nil, fmt.Errorf("no pending endpoint for class %q", class)
	}

	var commands []domain.Command
	if err := c.do(ctx, http.MethodGet, c.devicePath(path), nil, &commands); err != nil {
		return nil, err
	}

	if commands == nil {
		commands = []domain.Command{}
	}
	return commands, nil
}

// ReportCompleted сообщает серверу ровно о выполненных командах.
// Для process-kill подтверждаются только команды режима once; persistent сервер не снимает
func (c *APIClient) ReportCompleted(ctx context.Context, class shared.CommandClass, commands []domain.Command) error {
	if len(commands) == 0 {
		return nil
	}

	if class == shared.ClassProcessKill {
		return c.completeKills(ctx, commands)
	}

	path, ok := completedPaths[class]
	if !ok {
		return fmt.Errorf("no completion endpoint for class %q", class)
	}

	refs := make([]domain.CompletionRef, 0, len(commands))
	for _, cmd := range commands {
		refs = append(refs, cmd.Ref())
	}

	return c.do(ctx, http.MethodPost, c.devicePath(path), refs, nil)
}

func (c *APIClient) completeKills(ctx context.Context, commands []domain.Command) error {
	var errs []error
	seen := make(map[string]struct{})

	for _, cmd := range commands {
		kill, ok := cmd.Payload.(shared.ProcessKillPayload)
		if !ok || kill.Mode != shared.KillOnce {
			continue
		}
		if _, dup := seen[kill.Name]; dup {
			continue
		}
		seen[kill.Name] = struct{}{}

		err := c.do(ctx, http.MethodDelete, c.devicePath("processes/pending-kill/"+url.PathEscape(kill.Name)), nil, nil)
		// запись уже снята администратором или прошлым отчетом
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("complete kill %s: %w", kill.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (c *APIClient) ReportPatchResult(ctx context.Context, result *shared.PatchResult) error {
	return c.do(ctx, http.MethodPost, c.devicePath("actions/patch-result"), result, nil)
}

func (c *APIClient) USBStatus(ctx context.Context) (*shared.USBGrantStatus, error) {
	var status shared.USBGrantStatus
	if err := c.do(ctx, http.MethodGet, c.devicePath("action/usb-enable-pending"), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *APIClient) AcknowledgeUSB(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.devicePath("action/usb-enabled"), nil, nil)
}

func (c *APIClient) devicePath(suffix string) string {
	return "/api/devices/" + url.PathEscape(c.deviceID) + "/" + suffix
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBackendDown, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendDown, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if err := statusError(resp.StatusCode, env.Message); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, decodeErr)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func statusError(code int, message string) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrBackendDown, code)
	default:
		return fmt.Errorf("%w: %s", ErrRejected, message)
	}
}

// пустой список отправляется как [] а не null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
