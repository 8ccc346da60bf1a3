package storage

import (
	"context"
	"sync"
	"time"

	"FleetGuard/internal/backend/models"
)

type usbGrantStore struct {
	grants sync.Map // device id -> *models.USBGrant
	now    func() time.Time
}

func NewUSBGrantStore(now func() time.Time) USBGrantStore {
	if now == nil {
		now = time.Now
	}
	return &usbGrantStore{now: now}
}

// Grant повторная выдача, не продлевающая действующий грант, считается дубликатом
func (s *usbGrantStore) Grant(ctx context.Context, grant *models.USBGrant) (models.EnqueueStatus, error) {
	if grant.DeviceID == "" {
		return "", ErrInvalidDeviceID
	}

	stored := *grant
	for {
		current, loaded := s.grants.LoadOrStore(grant.DeviceID, &stored)
		if !loaded {
			return models.EnqueueAccepted, nil
		}

		existing := current.(*models.USBGrant)
		if existing.Valid(s.now()) && !existing.ExpiresAt.Before(stored.ExpiresAt) {
			return models.EnqueueDeduplicated, nil
		}

		if s.grants.CompareAndSwap(grant.DeviceID, existing, &stored) {
			return models.EnqueueAccepted, nil
		}
	}
}

func (s *usbGrantStore) Get(ctx context.Context, deviceID string) (*models.USBGrant, error) {
	current, ok := s.grants.Load(deviceID)
	if !ok {
		return nil, nil
	}

	grant := current.(*models.USBGrant)
	if !grant.Valid(s.now()) {
		// ленивое истечение: удаляем только если грант не успели заменить
		s.grants.CompareAndDelete(deviceID, grant)
		return nil, nil
	}

	copied := *grant
	return &copied, nil
}

func (s *usbGrantStore) Clear(ctx context.Context, deviceID string) (bool, error) {
	_, loaded := s.grants.LoadAndDelete(deviceID)
	return loaded, nil
}

func (s *usbGrantStore) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()
	purged := 0

	s.grants.Range(func(key, value any) bool {
		grant := value.(*models.USBGrant)
		if !grant.Valid(now) && s.grants.CompareAndDelete(key, grant) {
			purged++
		}
		return true
	})

	return purged, nil
}

func (s *usbGrantStore) CountActive(ctx context.Context) (int, error) {
	now := s.now()
	active := 0

	s.grants.Range(func(_, value any) bool {
		if value.(*models.USBGrant).Valid(now) {
			active++
		}
		return true
	})

	return active, nil
}
