// Package api exposes the Huddle HTTP surface: conversation CRUD, the
// local-history migration endpoint, backup export, and admin audit routes.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB        *gorm.DB
	Port      int
	BackupDir string
	Env       string // "development" or "production"; gates dangerous ops
	Out       io.Writer

	// Auth, when set, runs before every /api route. Session issuance and
	// verification live outside this service; this is the seam they plug
	// into.
	Auth gin.HandlerFunc
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Huddle API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with all routes registered. Split out
// from Start so tests can drive it with httptest.
func NewRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handleHealth(opts.DB))

	apiGroup := router.Group("/api")
	if opts.Auth != nil {
		apiGroup.Use(opts.Auth)
	}

	apiGroup.GET("/conversations", handleListConversations(opts.DB))
	apiGroup.POST("/conversations", handleCreateConversation(opts.DB))
	apiGroup.GET("/conversations/:id/messages", handleListMessages(opts.DB))
	apiGroup.POST("/conversations/:id/messages", handleAppendMessage(opts.DB))
	apiGroup.POST("/conversations/:id/archive", handleArchive(opts.DB))

	apiGroup.POST("/migrate", handleMigrate(opts.DB))
	apiGroup.POST("/backups/export", handleExport(opts.DB))

	admin := apiGroup.Group("/admin")
	admin.POST("/backup", handleAdminBackup(opts.DB, opts.BackupDir))
	admin.POST("/owners/:id/safe-delete", handleSafeDelete(opts.DB))
	admin.GET("/orphans", handleOrphans(opts.DB))

	return router
}

// errorBody is the wire shape for non-2xx responses.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func abortError(c *gin.Context, status int, message string) {
	var body errorBody
	body.Error.Message = message
	c.AbortWithStatusJSON(status, body)
}
