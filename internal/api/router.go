package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/credits"
	"attendance/internal/httpmiddleware"
	"attendance/internal/metrics"
	"attendance/internal/seed"
	"attendance/internal/users"
)

// CredentialChecker is satisfied by *auth.CredentialVerifier.
type CredentialChecker interface {
	Verify(ctx context.Context, identifier, secret string) (auth.Identity, error)
}

// Deps wires the router to the domain.
type Deps struct {
	Log        zerolog.Logger
	Verifier   CredentialChecker
	Tokens     *auth.TokenService
	Users      *users.Directory
	Ledger     credits.Ledger
	Policy     credits.ExhaustionPolicy
	Attendance *attendance.Service

	// Seeder and SeedFile back POST /seed_data, which is only routed when SeedEndpoint is set.
	Seeder       *seed.Seeder
	SeedFile     string
	SeedEndpoint bool

	// DatabaseHealthy reports storage reachability for /health; nil means always healthy.
	DatabaseHealthy func(ctx context.Context) bool

	CORSOrigins          []string
	RateLimitPerMin      int
	LoginRateLimitPerMin int
}

type handler struct {
	deps   Deps
	log    zerolog.Logger
	policy credits.ExhaustionPolicy
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(d Deps) *gin.Engine {
	h := &handler{deps: d, log: d.Log, policy: d.Policy}
	if h.policy == "" {
		h.policy = credits.PolicyRetry
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, "/health", "/metrics"))
	r.Use(httpmiddleware.CORS(d.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(d.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", h.health)
	loginLimiter := httpmiddleware.NewRateLimiter(d.LoginRateLimitPerMin).OnLimited(func(*gin.Context) {
		metrics.LoginAttempts.WithLabelValues("limited").Inc()
	})
	r.POST("/token", loginLimiter.GinMiddleware(), h.login)
	if d.SeedEndpoint && d.Seeder != nil {
		r.POST("/seed_data", h.seedData)
	}

	authed := r.Group("/", auth.RequireAuth(d.Tokens))

	staffOrHOD := auth.RequireRoles(auth.RoleStaff, auth.RoleDepartmentHead)
	staffOnly := auth.RequireRoles(auth.RoleStaff)
	hodOnly := auth.RequireRoles(auth.RoleDepartmentHead)
	anyRole := auth.RequireRoles(auth.RoleStaff, auth.RoleDepartmentHead, auth.RoleStudent)

	authed.GET("/students/", staffOrHOD, h.listStudents)
	authed.GET("/staff_dashboard/:class_name", staffOrHOD, h.dashboard)
	authed.GET("/hod_dashboard/:class_name", hodOnly, h.dashboard)

	authed.POST("/manual_attendance", staffOnly, h.manualAttendance)
	authed.POST("/auto_attendance", staffOnly, h.autoAttendance)
	authed.GET("/staff_actions/:admission_no", staffOnly, h.staffActions)
	authed.GET("/credits/me", staffOnly, h.myCredits)
	authed.POST("/credits/:staff_id/reset", hodOnly, h.resetCredits)

	authed.GET("/view_attendance/:admission_no", anyRole, h.viewAttendance)
	authed.GET("/me", anyRole, h.me)

	return r
}
