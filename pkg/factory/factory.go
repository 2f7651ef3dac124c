package factory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"exchangeflow/internal/config"
	"exchangeflow/internal/database"
	"exchangeflow/internal/domain"
	"exchangeflow/internal/repository"
	"exchangeflow/internal/service"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
	redisclient "exchangeflow/pkg/redis"
	"exchangeflow/pkg/session"
)

type Factory interface {
	GetLogger() logger.Logger
	GetConfig() *config.Config
	GetDB() *sql.DB
	GetRedisClient() *redis.Client
	GetGraph() *cache.Graph
	GetSessionStore() session.Store
	GetRepositories() domain.Repositories

	GetApplicationService() domain.ApplicationService
	GetProgramService() domain.ProgramService
	GetOfferService() domain.OfferService
	GetUserService() domain.UserService
	GetAuthService() domain.AuthService

	Close() error
}

type AppFactory struct {
	config      *config.Config
	logger      logger.Logger
	db          *sql.DB
	redisClient *redis.Client
	graph       *cache.Graph
	sessions    session.Store
	repos       domain.Repositories

	applicationService domain.ApplicationService
	programService     domain.ProgramService
	offerService       domain.OfferService
	userService        domain.UserService
	authService        domain.AuthService
}

// NewFactory opens the store, applies migrations, loads the object graph
// and builds the services on top of it.
func NewFactory(ctx context.Context, cfg *config.Config) (Factory, error) {
	log := logger.New(logger.LogLevel(cfg.LogLevel), nil)

	db, dialect, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrationService(db, dialect, log).RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not apply migrations: %w", err)
	}

	factory := &AppFactory{
		config: cfg,
		logger: log,
		db:     db,
		repos:  repository.New(db, log),
	}

	if err := factory.initSessions(); err != nil {
		db.Close()
		return nil, err
	}

	factory.graph, err = cache.Load(ctx, factory.repos, log)
	if err != nil {
		factory.Close()
		return nil, fmt.Errorf("could not load object cache: %w", err)
	}

	factory.initServices()

	return factory, nil
}

// initSessions keeps sessions in redis when it is configured and in
// process memory otherwise.
func (f *AppFactory) initSessions() error {
	if f.config.Redis.Addr == "" {
		f.sessions = session.NewMemoryStore()
		f.logger.Info("Sessions kept in memory", map[string]interface{}{})
		return nil
	}

	client, err := redisclient.NewClient(f.config.Redis)
	if err != nil {
		return err
	}
	f.redisClient = client
	f.sessions = session.NewRedisStore(client, f.logger, "exchange")
	f.logger.Info("Sessions kept in redis", map[string]interface{}{"addr": f.config.Redis.Addr})
	return nil
}

func (f *AppFactory) initServices() {
	f.applicationService = service.NewApplicationService(f.graph, f.repos, f.logger)
	f.programService = service.NewProgramService(f.graph, f.repos, f.logger)
	f.offerService = service.NewOfferService(f.graph, f.repos, f.logger)
	f.userService = service.NewUserService(f.graph, f.repos.Users, f.logger)

	issuer := session.NewIssuer(f.config.Session.Secret, f.config.Session.TTL)
	f.authService = service.NewAuthService(f.graph, f.repos.Users, issuer, f.sessions, f.config.Auth.MaxAttempts, f.logger)
}

func (f *AppFactory) GetLogger() logger.Logger {
	return f.logger
}

func (f *AppFactory) GetConfig() *config.Config {
	return f.config
}

func (f *AppFactory) GetDB() *sql.DB {
	return f.db
}

// GetRedisClient is nil when sessions are kept in memory.
func (f *AppFactory) GetRedisClient() *redis.Client {
	return f.redisClient
}

func (f *AppFactory) GetGraph() *cache.Graph {
	return f.graph
}

func (f *AppFactory) GetSessionStore() session.Store {
	return f.sessions
}

func (f *AppFactory) GetRepositories() domain.Repositories {
	return f.repos
}

func (f *AppFactory) GetApplicationService() domain.ApplicationService {
	return f.applicationService
}

func (f *AppFactory) GetProgramService() domain.ProgramService {
	return f.programService
}

func (f *AppFactory) GetOfferService() domain.OfferService {
	return f.offerService
}

func (f *AppFactory) GetUserService() domain.UserService {
	return f.userService
}

func (f *AppFactory) GetAuthService() domain.AuthService {
	return f.authService
}

func (f *AppFactory) Close() error {
	if f.redisClient != nil {
		f.redisClient.Close()
	}
	return f.db.Close()
}
