package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/qaboard/config"
	"github.com/cppla/qaboard/controllers"
	"github.com/cppla/qaboard/middleware"
	"github.com/cppla/qaboard/store"
	"github.com/cppla/qaboard/utils"
	"github.com/cppla/qaboard/votes"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(st *store.Store) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rotated file; app log stays separate.
	if al, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
		r.Use(utils.GinLogger(al))
		r.Use(utils.GinRecovery(al))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Uploaded reply attachments are served as static files.
	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	ledger := votes.NewLedger(st.Questions, st.Answers)
	tree := votes.NewReplyTree(st.Answers)

	authController := controllers.NewAuthController(st.Users)
	questionController := controllers.NewQuestionController(st, ledger)
	answerController := controllers.NewAnswerController(st, ledger, tree)
	statsController := controllers.NewStatsController(st)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public reads.
	api.GET("/questions", questionController.ListQuestions)
	api.GET("/stats", statsController.GetStats)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/questions", questionController.CreateQuestion)
	protected.POST("/questions/:id/upvote", questionController.UpvoteQuestion)
	protected.POST("/answers/:id", answerController.CreateAnswer)
	protected.POST("/answers/:id/reply", answerController.CreateReply)
	protected.POST("/answers/:id/upvote", answerController.UpvoteAnswer)
	protected.POST("/answers/:id/reply/:replyId/upvote", answerController.UpvoteReply)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
