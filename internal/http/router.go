package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/http/handlers"
	"github.com/shiftdesk/shiftdesk/internal/http/middlewares"
	"github.com/shiftdesk/shiftdesk/internal/observability"
	"github.com/shiftdesk/shiftdesk/internal/repo/postgres"
	"github.com/shiftdesk/shiftdesk/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Sessions *session.Store
	Prom     *observability.Prom
	Registry *prometheus.Registry
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(deps.Log))
	r.Use(otelgin.Middleware("shiftdesk-api"))
	r.Use(deps.Prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	// wire up repositories

	usersRepo := postgres.NewUsersRepo(deps.Pool, deps.Prom)
	rolesRepo := postgres.NewRolesRepo(deps.Pool, deps.Prom)
	shiftsRepo := postgres.NewShiftsRepo(deps.Pool, deps.Prom)
	assignmentsRepo := postgres.NewAssignmentsRepo(deps.Pool, deps.Prom)
	outboxRepo := postgres.NewOutboxRepo(deps.Pool, deps.Prom)

	// handlers

	healthHandler := handlers.NewHealthHandler(deps.Pool, deps.Sessions)
	authHandler := handlers.NewAuthHandler(usersRepo, rolesRepo, deps.Sessions, deps.Cfg, deps.Log)
	usersHandler := handlers.NewUsersHandler(usersRepo, rolesRepo, outboxRepo, deps.Log)
	rolesHandler := handlers.NewRolesHandler(rolesRepo)
	shiftsHandler := handlers.NewShiftsHandler(shiftsRepo, usersRepo)
	assignmentsHandler := handlers.NewAssignmentsHandler(assignmentsRepo, usersRepo, shiftsRepo, outboxRepo)

	// guards

	sessionGuard := middlewares.NewSessionMiddleware(deps.Sessions, deps.Cfg.SessionCookieName)
	requireSession := sessionGuard.RequireSession()
	requireAdmin := sessionGuard.RequireRole(usersRepo, "Admin")

	// health + metrics

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// session probes live outside /api

	r.GET("/check-session", requireSession, authHandler.CheckSession)
	r.POST("/logout", authHandler.Logout)

	// credential-guessing protection on the only unauthenticated POST
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	api := r.Group("/api")

	users := api.Group("/user")
	{
		users.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
		users.POST("/create", requireSession, requireAdmin, usersHandler.Create)
		users.GET("/", requireSession, usersHandler.List)
		users.PUT("/:id", requireSession, requireAdmin, usersHandler.Update)
		users.DELETE("/:id", requireSession, requireAdmin, usersHandler.Delete)
	}

	roles := api.Group("/userrole", requireSession)
	{
		roles.POST("/addrole", requireAdmin, rolesHandler.Create)
		roles.GET("/getroles", rolesHandler.List)
		roles.GET("/count", rolesHandler.Count)
		roles.PUT("/updaterole/:id", requireAdmin, rolesHandler.Update)
		roles.DELETE("/deleterole/:id", requireAdmin, rolesHandler.Delete)
	}

	shifts := api.Group("/shifts", requireSession)
	{
		shifts.POST("/", requireAdmin, shiftsHandler.Create)
		shifts.GET("/", shiftsHandler.List)
		shifts.GET("/:id", shiftsHandler.GetByID)
		shifts.PUT("/:id", requireAdmin, shiftsHandler.Update)
		shifts.DELETE("/:id", requireAdmin, shiftsHandler.Delete)
	}

	shiftlogs := api.Group("/shiftlogs", requireSession)
	{
		shiftlogs.POST("/", requireAdmin, assignmentsHandler.BulkAssign)
		shiftlogs.GET("/", assignmentsHandler.List)
		shiftlogs.GET("/assignments", assignmentsHandler.Counts)
		shiftlogs.GET("/usersbyrole", assignmentsHandler.UsersByRole)
		shiftlogs.GET("/:id", assignmentsHandler.GetByID)
		shiftlogs.PUT("/:id", requireAdmin, assignmentsHandler.Update)
		shiftlogs.DELETE("/:id", requireAdmin, assignmentsHandler.Delete)
	}

	return r
}
