package app

import (
	"context"
	"net/http"
	"time"

	"bitwise74/marketplace-auth/app/auth"
	"bitwise74/marketplace-auth/app/roles"
	"bitwise74/marketplace-auth/app/root"
	"bitwise74/marketplace-auth/config"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/internal/service"
	"bitwise74/marketplace-auth/pkg/middleware"
	"bitwise74/marketplace-auth/pkg/response"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewRouter mounts every endpoint. Goroutines it starts stop with ctx.
func NewRouter(ctx context.Context, cfg *config.Config, d *internal.Deps) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     cfg.Host.CORS,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken", authn.FingerprintHeader, middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, authn.AssertionHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetInt64("userID"); v != 0 {
					fields = append(fields, zap.Int64("userID", v))
				}

				return fields
			},
		}),
		d.Metrics.Middleware(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	router.MaxMultipartMemory = 5 << 20

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.Security.RateLimit,
		Burst:             cfg.Security.RateLimit * 2,
	})
	go limiter.Cleanup(ctx)

	authed := middleware.NewAuthMiddleware(d.Auth, d.Metrics)
	turnstile := middleware.NewTurnstileMiddleware(middleware.TurnstileConfig{
		Enabled: cfg.Turnstile.Enabled,
		Secret:  cfg.Turnstile.SecretToken,
	})
	manager := middleware.RequireRole(d.Roles, service.RoleManager)
	body := middleware.BodySizeLimiter(cfg.Security.BodyLimit)

	catalog := persist.NewMemoryStore(time.Minute)
	dropCatalog := middleware.DropCached(catalog, "/api/roles")
	with := func(h func(*gin.Context, *internal.Deps)) gin.HandlerFunc {
		return func(c *gin.Context) { h(c, d) }
	}

	if d.Metrics != nil {
		// GET /metrics			-> Prometheus scrape endpoint
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	m := router.Group("/api", limiter.Handler())
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", with(root.Heartbeat))

		// GET /api/validate		-> Validates a bearer token and returns its identity
		m.GET("/validate", authed, root.Validate)
	}

	// The auth endpoints are served from the local store. An instance using
	// the remote strategy points at another instance's /api/auth instead.
	if d.Auth.Kind() == authn.KindLocal {
		a := m.Group("/auth")
		{
			// GET /api/auth/getByToken/:token	-> Resolves a session token to its owner
			a.GET("/getByToken/:token", with(auth.GetByToken))

			// GET /api/auth/getByEmail/:email	-> Resolves a user by email
			a.GET("/getByEmail/:email", with(auth.GetByEmail))

			// GET /api/auth/getById/:id		-> Resolves a user by id
			a.GET("/getById/:id", with(auth.GetByID))

			// POST /api/auth/loginWithEmail	-> Checks an email and password pair
			a.POST("/loginWithEmail", body, with(auth.LoginWithEmail))

			// POST /api/auth/gettokenauthorized	-> Logs in and issues a session token
			a.POST("/gettokenauthorized", body, with(auth.IssueToken))

			// POST /api/auth/register		-> Registers a new user
			a.POST("/register", body, turnstile, with(auth.Register))

			// POST /api/auth/changePassword	-> Changes the caller's password
			a.POST("/changePassword", body, authed, with(auth.ChangePassword))

			// GET /api/auth/sendRecoveryMail/:email	-> Mails a password recovery link
			a.GET("/sendRecoveryMail/:email", turnstile, with(auth.SendRecoveryMail))

			// POST /api/auth/changePasswordUsingHash	-> Redeems a recovery hash
			a.POST("/changePasswordUsingHash", body, with(auth.ChangePasswordUsingHash))

			// POST /api/auth/uploadImageUser	-> Replaces the caller's avatar
			a.POST("/uploadImageUser", authed, middleware.BodySizeLimiter(d.Avatars.MaxSize()+1<<20), with(auth.UploadImageUser))

			// GET /api/auth/sessions		-> Lists the caller's signed in devices
			a.GET("/sessions", authed, with(auth.ListSessions))
		}
	}

	r := m.Group("/roles", authed, manager)
	{
		// GET /api/roles		-> Lists the role catalog
		r.GET("", cache.CacheByRequestPath(catalog, 30*time.Second), with(roles.List))

		// GET /api/roles/:slug		-> Returns a role by slug
		r.GET("/:slug", with(roles.Get))

		// POST /api/roles		-> Adds a role to the catalog
		r.POST("", body, dropCatalog, with(roles.Create))

		// DELETE /api/roles/:id	-> Deletes a role and its memberships
		r.DELETE("/:id", dropCatalog, with(roles.Delete))
	}

	u := m.Group("/users/:id/roles", authed, manager)
	{
		// GET /api/users/:id/roles		-> Lists the roles of a user
		u.GET("", with(roles.UserRoles))

		// PUT /api/users/:id/roles		-> Replaces the roles of a user
		u.PUT("", body, with(roles.SyncUserRoles))

		// DELETE /api/users/:id/roles		-> Removes every role of a user (admins only)
		u.DELETE("", middleware.RequireAdmin(), with(roles.RemoveAllUserRoles))

		// POST /api/users/:id/roles/:roleID	-> Grants a role
		u.POST("/:roleID", with(roles.AddUserRole))

		// DELETE /api/users/:id/roles/:roleID	-> Revokes a role
		u.DELETE("/:roleID", with(roles.RemoveUserRole))
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, "Not found")
	})

	return router
}
