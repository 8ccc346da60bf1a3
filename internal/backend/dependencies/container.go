package dependencies

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"FleetGuard/internal/backend/services"
	"FleetGuard/internal/backend/storage"
	"FleetGuard/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Container контейнер зависимостей
type Container struct {
	// Config
	Config *config.Config

	// Logger
	Logger *slog.Logger

	// Storage
	Queue    storage.CommandQueue
	Registry storage.DeviceRegistry
	USB      storage.USBGrantStore
	Audit    storage.AuditStore
	Reports  storage.ReportStore
	Policies storage.PolicyStore
	Events   storage.EventBus

	// Services
	QueueService       *services.QueueService
	DeviceService      *services.DeviceService
	PolicyService      *services.PolicyService
	MaintenanceService *services.MaintenanceService

	// Database connections
	DB *pgxpool.Pool

	closeOnce sync.Once
	closeErr  error
}

// NewContainer создает и инициализирует контейнер зависимостей.
// Без PostgreSQL и Redis используются хранилища и шина событий в памяти
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	container := &Container{
		Config: cfg,
		Logger: log,
	}

	// Инициализация зависимостей
	if err := container.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := container.initEvents(); err != nil {
		container.Close()
		return nil, err
	}

	container.initStorage()
	container.initServices()

	log.Info("Dependency container initialized successfully",
		"database", container.DB != nil,
		"redis", cfg.Redis.Enabled,
	)
	return container, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	if !c.Config.Database.Enabled {
		c.Logger.Warn("database disabled, audit log and report history are kept in memory")
		return nil
	}

	db, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	c.DB = db
	return nil
}

func (c *Container) initEvents() error {
	if !c.Config.Redis.Enabled {
		c.Events = storage.NewLocalEvents()
		return nil
	}

	events, err := storage.NewRedisEvents(&c.Config.Redis, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.Events = events
	return nil
}

func (c *Container) initStorage() {
	c.Queue = storage.NewCommandQueue(nil)
	c.Registry = storage.NewDeviceRegistry(c.Config.Registry.LivenessThreshold, nil)
	c.USB = storage.NewUSBGrantStore(nil)

	if c.DB != nil {
		c.Audit = storage.NewAuditStore(c.DB)
		c.Reports = storage.NewReportStore(c.DB)
		c.Policies = storage.NewPolicyStore(c.DB)
		return
	}

	c.Audit = storage.NewMemoryAuditStore()
	c.Reports = storage.NewMemoryReportStore()
	c.Policies = storage.NewMemoryPolicyStore()
}

func (c *Container) initServices() {
	logger := c.Logger

	c.QueueService = services.NewQueueService(
		c.Queue,
		c.USB,
		c.Audit,
		c.Events,
		services.QueueServiceConfig{
			StuckAfter:         c.Config.Queue.StuckAfter,
			DefaultUSBDuration: c.Config.Queue.DefaultUSBDuration,
			MaxUSBDuration:     c.Config.Queue.MaxUSBDuration,
			EventsChannel:      c.Config.Queue.EventsChannel,
		},
		logger.With("service", "queue"),
	)

	c.DeviceService = services.NewDeviceService(
		c.Registry,
		c.Reports,
		c.Audit,
		c.QueueService,
		services.DeviceServiceConfig{
			LivenessThreshold: c.Config.Registry.LivenessThreshold,
			ReportHistory:     c.Config.Registry.ReportHistory,
		},
		logger.With("service", "device"),
	)

	c.PolicyService = services.NewPolicyService(
		c.Policies,
		c.Audit,
		logger.With("service", "policy"),
	)

	c.MaintenanceService = services.NewMaintenanceService(
		c.USB,
		c.DeviceService,
		c.QueueService,
		services.MaintenanceConfig{
			Schedule:        c.Config.Maintenance.Schedule,
			ReportRetention: c.Config.Maintenance.ReportRetention,
		},
		logger.With("service", "maintenance"),
	)
}

// Close закрывает все соединения; повторный вызов возвращает результат первого
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close()
	})
	return c.closeErr
}

func (c *Container) close() error {
	var errors []error

	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			errors = append(errors, err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errors)
	}

	return nil
}
