package services

import (
	"context"
	"fmt"
	"log/slog"

	"FleetGuard/internal/backend/models"
	"FleetGuard/internal/backend/storage"
	shared "FleetGuard/internal/shared/models"
	"FleetGuard/pkg/validator"
)

// PolicyService белые и черные списки расширений по устройствам
type PolicyService struct {
	store  storage.PolicyStore
	audit  storage.AuditStore
	logger *slog.Logger
}

func NewPolicyService(store storage.PolicyStore, audit storage.AuditStore, logger *slog.Logger) *PolicyService {
	if logger == nil {
		logger = slog.Default()
	}

	return &PolicyService{
		store:  store,
		audit:  audit,
		logger: logger,
	}
}

func (s *PolicyService) GetLists(ctx context.Context, deviceID string, mode storage.PolicyMode) (shared.ExtensionLists, error) {
	if err := checkDeviceID(deviceID); err != nil {
		return nil, err
	}

	lists, err := s.store.GetLists(ctx, deviceID, mode)
	if err != nil {
		s.logger.Error("failed to read extension policy",
			"error", err,
			"device_id", deviceID,
			"mode", mode,
		)
		return nil, fmt.Errorf("failed to read extension policy: %w", err)
	}

	return lists, nil
}

// ReplaceLists заменяет списки целиком; пустые значения отбрасываются
func (s *PolicyService) ReplaceLists(ctx context.Context, actor, deviceID string, mode storage.PolicyMode, lists shared.ExtensionLists) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}

	cleaned := shared.ExtensionLists{}
	total := 0
	for category, entries := range lists {
		if !validator.ValidateName(category) {
			return fmt.Errorf("%w: invalid category %q", ErrInvalidRequest, category)
		}
		seen := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			if entry == "" {
				continue
			}
			if !validator.ValidateName(entry) {
				return fmt.Errorf("%w: invalid extension %q", ErrInvalidRequest, entry)
			}
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			cleaned[category] = append(cleaned[category], entry)
			total++
		}
	}

	if err := s.store.ReplaceLists(ctx, deviceID, mode, cleaned); err != nil {
		s.logger.Error("failed to store extension policy",
			"error", err,
			"device_id", deviceID,
			"mode", mode,
		)
		return fmt.Errorf("failed to store extension policy: %w", err)
	}

	s.logger.Info("extension policy replaced",
		"device_id", deviceID,
		"mode", mode,
		"entries", total,
		"actor", actor,
	)

	if s.audit != nil {
		entry := &models.CommandLog{
			User:    actor,
			Action:  "extension-" + string(mode),
			Device:  deviceID,
			Details: fmt.Sprintf("entries=%d", total),
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to write audit log", "error", err, "device_id", deviceID)
		}
	}

	return nil
}
