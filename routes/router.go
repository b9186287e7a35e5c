package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/cppla/forumposts/config"
	"github.com/cppla/forumposts/controllers"
	"github.com/cppla/forumposts/middleware"
	"github.com/cppla/forumposts/models"
	"github.com/cppla/forumposts/repositories"
	"github.com/cppla/forumposts/services"
	"github.com/cppla/forumposts/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, repo repositories.PostRepository) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Access log goes to its own rolling file when GinPath is set.
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg, cfg.GinPath); err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnf("gin log file unavailable, using app logger: %v", err)
		}
	}
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	postController := controllers.NewPostController(services.NewPostService(repo))

	forum := r.Group("/forum")
	forum.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

	forum.POST("/post/:author", middleware.ValidateJSON[models.NewPost](), postController.CreatePost)
	forum.GET("/post/:id", postController.GetPost)
	forum.DELETE("/post/:id", postController.DeletePost)
	forum.PATCH("/post/:id", middleware.ValidateJSON[models.PostPatch](), postController.UpdatePost)
	forum.PATCH("/post/:id/like", postController.AddLike)
	forum.PATCH("/post/:id/comment/:user", middleware.ValidateJSON[models.NewComment](), postController.AddComment)

	forum.GET("/posts/author/:author", postController.GetPostsByAuthor)
	forum.GET("/posts/tags", postController.GetPostsByTags)
	forum.GET("/posts/period", postController.GetPostsByPeriod)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "route not found")
	})

	return r
}
