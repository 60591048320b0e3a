package app

import (
	"context"

	"gorm.io/gorm"
	"notify-hub.backend/internal/config"
	"notify-hub.backend/internal/infrastructure/email"
	"notify-hub.backend/internal/infrastructure/jobs"
	"notify-hub.backend/internal/infrastructure/repositories"
	"notify-hub.backend/internal/metrics"
	"notify-hub.backend/internal/usecases"
	"notify-hub.backend/pkg/cache"
	"notify-hub.backend/pkg/redis"
)

// Container holds the wired usecases shared by the server and the operator CLI.
type Container struct {
	Cache         *cache.TieredCache
	Tokens        *usecases.VerificationTokenUsecase
	Templates     *usecases.TemplateUsecase
	Suppressions  *usecases.SuppressionUsecase
	Dispatcher    *usecases.EmailDispatcher
	Notifications *usecases.NotificationUsecase
	Sweep         *jobs.NotificationSweepJob
}

var newProvider = email.NewProvider

// New wires repositories, cache, provider and usecases. store may be nil.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, store *redis.Store) *Container {
	tokenRepo := repositories.NewVerificationTokenRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	suppressionRepo := repositories.NewSuppressionRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	uow := repositories.NewUnitOfWork(db)

	var shared cache.Shared
	if store != nil {
		shared = store
	}
	tiered := cache.New(shared, cache.Config{
		DefaultTTL:     cfg.Cache.DefaultTTL,
		LocalMaxTTL:    cfg.Cache.LocalMaxTTL,
		NamespaceTTLs:  cfg.Cache.NamespaceTTLs,
		ComputeTimeout: cfg.Cache.ComputeTimeout,
		Observe:        metrics.ObserveCache,
	})

	tokens := usecases.NewVerificationTokenUsecase(tokenRepo)
	templates := usecases.NewTemplateUsecase(templateRepo, tiered)
	suppressions := usecases.NewSuppressionUsecase(suppressionRepo, tokens, uow)

	dispatcher := usecases.NewEmailDispatcher(
		newProvider(ctx, cfg.Email),
		email.NewConsoleProvider(),
		suppressions,
		usecases.DispatcherConfig{
			BatchSize:   cfg.Email.BatchSize,
			SendTimeout: cfg.Email.SendTimeout,
		},
	)

	notifications := usecases.NewNotificationUsecase(
		notificationRepo,
		templates,
		tokens,
		dispatcher,
		uow,
		usecases.NewLinkBuilder(cfg.Server.BaseURL),
		usecases.SweepPolicy{
			BatchSize:   cfg.Sweep.BatchSize,
			MaxAttempts: cfg.Sweep.MaxAttempts,
			MaxAge:      cfg.Sweep.MaxAge,
			BaseBackoff: cfg.Sweep.BaseBackoff,
			MaxBackoff:  cfg.Sweep.MaxBackoff,
			StaleAfter:  cfg.Sweep.StaleAfter,
		},
	)

	return &Container{
		Cache:         tiered,
		Tokens:        tokens,
		Templates:     templates,
		Suppressions:  suppressions,
		Dispatcher:    dispatcher,
		Notifications: notifications,
		Sweep:         jobs.NewNotificationSweepJob(notifications, store, cfg.Sweep.Interval, cfg.Sweep.LockTTL),
	}
}
