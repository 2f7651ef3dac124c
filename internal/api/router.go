package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exchangeflow/internal/api/middleware"
	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Applications domain.ApplicationService
	Programs     domain.ProgramService
	Offers       domain.OfferService
	Users        domain.UserService
	Auth         domain.AuthService
	Cache        Reloader
	Health       map[string]HealthCheck
}

func NewRouter(s Services, log logger.Logger) http.Handler {
	guard := NewGuard(s.Auth, log)
	mux := http.NewServeMux()

	NewAuthHandler(s.Auth, guard, log).RegisterRoutes(mux)
	NewUserHandler(s.Users, guard, log).RegisterRoutes(mux)
	NewProgramHandler(s.Programs, guard, log).RegisterRoutes(mux)
	NewOfferHandler(s.Offers, guard, log).RegisterRoutes(mux)
	NewApplicationHandler(s.Applications, guard, log).RegisterRoutes(mux)
	NewCacheHandler(s.Cache, guard, log).RegisterRoutes(mux)
	NewHealthHandler(s.Health, log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(middleware.Metrics(mux))
}
