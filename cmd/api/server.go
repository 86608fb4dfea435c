package main

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storerate/admin"
	"storerate/auth"
	"storerate/gate"
	"storerate/rating"
)

// tokenRevoker is the logout blacklist; *tokenstore.Store satisfies it.
type tokenRevoker interface {
	gate.RevocationChecker
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the services behind the HTTP API.
type Server struct {
	authService   *auth.Service
	ratingService *rating.Service
	adminService  *admin.Service
	revocations   tokenRevoker
	db            Pinger
	log           *logrus.Logger
	corsOrigins   []string
	now           func() time.Time
}

// routes builds the gin engine. Role allow-sets are declared here, per route.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), requestLogger(s.logger()), recovery(s.logger()))
	r.Use(cors.New(s.corsConfig()))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Store Rating Backend API is running!")
	})
	r.GET("/health", s.handleHealth)

	var revocations gate.RevocationChecker
	if s.revocations != nil {
		revocations = s.revocations
	}
	authn := gate.Authenticate(s.authService, revocations)
	anyRole := gate.Require(auth.Roles...)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.PUT("/update-password", authn, anyRole, s.handleUpdatePassword)
	authGroup.GET("/me", authn, anyRole, s.handleMe)
	if s.revocations != nil {
		authGroup.POST("/logout", authn, anyRole, s.handleLogout)
	}

	stores := api.Group("/stores", authn)
	stores.GET("", gate.Require(auth.RoleNormalUser), s.handleListStores)
	stores.PUT("/:storeId/rate", gate.Require(auth.RoleNormalUser), s.handleRateStore)
	stores.GET("/owner-dashboard", gate.Require(auth.RoleStoreOwner), s.handleOwnerDashboard)

	adminGroup := api.Group("/admin", authn, gate.Require(auth.RoleSystemAdministrator))
	adminGroup.GET("/dashboard", s.handleAdminDashboard)
	adminGroup.POST("/users", s.handleAddUser)
	adminGroup.GET("/users", s.handleListUsers)
	adminGroup.POST("/stores", s.handleAddStore)
	adminGroup.GET("/stores", s.handleAdminListStores)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(s.corsOrigins) == 0 || slices.Contains(s.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.corsOrigins
	}
	return cfg
}

func (s *Server) logger() *logrus.Logger {
	if s.log == nil {
		return logrus.StandardLogger()
	}
	return s.log
}

func (s *Server) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger().WithError(err).Warn("health check: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
