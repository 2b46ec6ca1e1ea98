package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var (
	flagDevAdmins []string
	flagDevTechs  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and background workers",
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&flagDevAdmins, "dev-admin", nil, "user ids granted admin in the in-memory store (no POSTGRES_DSN)")
	cmd.Flags().StringSliceVar(&flagDevTechs, "dev-tech", nil, "user ids granted tecnico in the in-memory store (no POSTGRES_DSN)")
}

// repositories is the storage backend the services run on.
type repositories struct {
	tx          repository.Transactor
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	assignments repository.TicketAssignmentRepository
	profiles    repository.ProfileRepository
	roles       repository.UserRoleRepository
}

func postgresRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	return repositories{
		tx:          repository.NewTransactor(pool),
		tickets:     repository.NewTicketRepository(pool),
		messages:    repository.NewTicketMessageRepository(pool),
		assignments: repository.NewTicketAssignmentRepository(pool),
		profiles:    repository.NewProfileRepository(pool),
		roles:       repository.NewUserRoleRepository(pool),
	}
}

func memoryRepositories(ctx context.Context) (repositories, error) {
	store := memory.NewStore()
	grants := map[domain.AppRole][]string{
		domain.RoleAdmin:   flagDevAdmins,
		domain.RoleTecnico: flagDevTechs,
	}
	for role, ids := range grants {
		for _, id := range ids {
			if err := store.Roles().Grant(ctx, id, role); err != nil {
				return repositories{}, err
			}
		}
	}
	return repositories{
		tx:          store.Transactor(),
		tickets:     store.Tickets(),
		messages:    store.Messages(),
		assignments: store.Assignments(),
		profiles:    store.Profiles(),
		roles:       store.Roles(),
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return err
	}
	defer pg.Close()

	var repos repositories
	if pg.PoolHandle() != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Error("failed to run migrations", zap.Error(err))
				return err
			}
		}
		repos = postgresRepositories(pg)
	} else {
		logger.Warn("serving from the in-memory store; data is lost on restart")
		if repos, err = memoryRepositories(ctx); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	ticketDeps := service.TicketDependencies{
		Transactor:           repos.tx,
		TicketRepo:           repos.tickets,
		MessageRepo:          repos.messages,
		AssignmentRepo:       repos.assignments,
		IdempotencyRepo:      repository.NewIdempotencyRepository(redis.Client),
		Dispatcher:           dispatcher,
		Metrics:              metrics,
		Logger:               logger,
		IdempotencyTTL:       cfg.Intake.IdempotencyTTL(),
		MaxTitleLength:       cfg.Intake.MaxTitleLength,
		MaxDescriptionLength: cfg.Intake.MaxDescriptionLength,
	}
	ticketService := service.NewTicketService(ticketDeps)
	authzService := service.NewAuthorizationService(repos.roles)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Tickets:        ticketDeps,
		AssignmentRepo: repos.assignments,
		Authorization:  authzService,
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		ProfileRepo:          repos.profiles,
		Tickets:              ticketService,
		SubmitDelay:          cfg.Intake.SubmitDelay(),
		MaxTitleLength:       cfg.Intake.MaxTitleLength,
		MaxDescriptionLength: cfg.Intake.MaxDescriptionLength,
		PreviewRunes:         cfg.Intake.DescriptionPreviewRunes,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	sessions := auth.NewJWTSessionProvider(tokens, repository.NewSessionRepository(redis.Client), cfg.Auth.SessionCookie)

	app := httptransport.NewServer(httptransport.ServerOptions{
		Name:           cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDependencies(pg, redis), metrics),
		Dashboard:      handlers.NewDashboardHandler(dashboardService, sessions, cfg.Auth.LoginPath, logger),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		TechTickets:    handlers.NewTechTicketsHandler(ticketService, assignmentService),
		AuthMiddleware: auth.NewAuthMiddleware(sessions, authzService),
		LoginPath:      cfg.Auth.LoginPath,
	})

	var workers sync.WaitGroup
	autoClose := worker.NewAutoCloseWorker(ticketService, cfg.Lifecycle.AutoCloseAfter(), cfg.Lifecycle.AutoCloseInterval(), logger)
	workers.Add(1)
	go func() {
		defer workers.Done()
		autoClose.Run(ctx)
	}()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err = <-listenErr:
		logger.Error("fiber listen", zap.Error(err))
		stop()
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		logger.Warn("shutdown", zap.Error(shutdownErr))
	}
	workers.Wait()
	return err
}

func healthDependencies(pg *persistence.Postgres, redis *persistence.Redis) map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{"redis": redis}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}
	return deps
}

