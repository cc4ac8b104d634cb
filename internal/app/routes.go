package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskflow/docs"
	"taskflow/internal/auth"
	"taskflow/internal/config"
	"taskflow/internal/dto"
	"taskflow/internal/handlers"
	"taskflow/internal/logctx"
	"taskflow/internal/metrics"
	"taskflow/internal/ratelimit"
	"taskflow/internal/realtime"
	"taskflow/internal/service"
	"taskflow/internal/validation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps is everything the router needs. Hub, Limiter and Metrics may be nil.
type Deps struct {
	Config    config.Config
	Logger    *slog.Logger
	Validator *validation.Validator
	Tokens    auth.TokenVerifier

	Auth          *service.AuthService
	Tasks         *service.TaskService
	Projects      *service.ProjectService
	Notifications *service.NotificationService

	Hub     *realtime.Hub
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
}

// NewRouter builds the gin engine with global middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(logctx.RequestID(), logctx.Logger(d.Logger), logctx.Recover())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	origins := []string(d.Config.HTTP.CORSOrigins)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logctx.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Type", logctx.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.Fail(dto.KindNotFound, "route not found"))
	})

	Setup(r, d)
	return r
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, d Deps) {
	r.GET("/", rootHandler(d.Config))
	r.GET("/health", healthHandler(d.Config))
	r.GET("/version", versionHandler(d.Config))
	r.GET("/swagger-doc.json", swaggerDocHandler(d.Config))
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.Hub != nil {
		r.GET("/ws", d.Hub.Handler())
	}

	api := r.Group("/api/v1", requestTimeout(d.Config.HTTP.RequestTimeout.Duration()))
	if d.Limiter != nil {
		api.Use(ratelimit.Middleware(d.Limiter))
	}
	v := d.Validator
	protected := api.Group("", auth.RequireAuth(d.Tokens))

	registerAuthRoutes(api, protected, v, handlers.NewAuthHandler(d.Auth))
	registerTaskRoutes(protected, v, handlers.NewTaskHandler(d.Tasks))
	registerProjectRoutes(protected, v, handlers.NewProjectHandler(d.Projects))
	registerNotificationRoutes(protected, v, handlers.NewNotificationHandler(d.Notifications))
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.OK(gin.H{
			"service": "Taskflow API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
			"ws":      "/ws",
		}))
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.OK(gin.H{"ok": true, "env": cfg.App.Env}))
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.OK(gin.H{"version": cfg.App.Version}))
	}
}

func swaggerDocHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := *docs.SwaggerInfo
		if cfg.App.Version != "" {
			info.Version = cfg.App.Version
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(info.ReadDoc()))
	}
}

// requestTimeout bounds the request context; d <= 0 disables it.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func registerAuthRoutes(api, protected *gin.RouterGroup, v *validation.Validator, h *handlers.AuthHandler) {
	api.POST("/auth/register", v.Body(validation.AuthRegister), h.Register)
	api.POST("/auth/login", v.Body(validation.AuthLogin), h.Login)
	protected.GET("/auth/me", h.Me)
	protected.PATCH("/auth/me", v.Body(validation.UserUpdate), h.UpdateMe)
}

func registerTaskRoutes(api *gin.RouterGroup, v *validation.Validator, h *handlers.TaskHandler) {
	api.POST("/tasks", v.Body(validation.TaskCreate), h.Create)
	api.GET("/tasks", v.Query(validation.TaskList), h.List)
	api.GET("/tasks/search", v.Query(validation.TaskSearch), h.Search)
	api.GET("/tasks/overdue", h.Overdue)
	api.GET("/tasks/:id", h.GetByID)
	api.PATCH("/tasks/:id", v.Body(validation.TaskUpdate), h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/complete", h.Complete)
}

func registerProjectRoutes(api *gin.RouterGroup, v *validation.Validator, h *handlers.ProjectHandler) {
	api.POST("/projects", v.Body(validation.ProjectCreate), h.Create)
	api.GET("/projects", h.List)
	api.GET("/projects/:id", h.Get)
	api.POST("/projects/:id/members", v.Body(validation.ProjectMember), h.AddMember)
	api.DELETE("/projects/:id/members/:userId", h.RemoveMember)
}

func registerNotificationRoutes(api *gin.RouterGroup, v *validation.Validator, h *handlers.NotificationHandler) {
	api.GET("/notifications", v.Query(validation.NotificationList), h.List)
	api.GET("/notifications/unread-count", h.UnreadCount)
	api.POST("/notifications/read-all", h.MarkAllRead)
	api.PATCH("/notifications/:id/read", h.MarkRead)
}
