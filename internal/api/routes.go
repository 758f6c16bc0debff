package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alcyxob/fittrack/internal/metrics"
	"alcyxob/fittrack/internal/service"
)

// Services groups everything the HTTP surface calls into.
type Services struct {
	Auth     service.AuthService
	Workouts service.WorkoutService
	Drafts   service.DraftService
	Profiles service.ProfileService
	Catalog  service.CatalogService
}

// RouterOptions configures the cross-cutting middleware. Nil fields switch the feature off.
type RouterOptions struct {
	Cookies     CookieOptions
	Metrics     *metrics.Manager
	Gatherer    prometheus.Gatherer
	RateLimiter RequestRateLimiter
	PerMinute   int
}

func SetupRoutes(router *gin.Engine, services Services, opts RouterOptions) {
	authHandler := NewAuthHandler(services.Auth, opts.Cookies)
	workoutHandler := NewWorkoutHandler(services.Workouts)
	draftHandler := NewDraftHandler(services.Drafts)
	profileHandler := NewProfileHandler(services.Profiles)
	catalogHandler := NewCatalogHandler(services.Catalog)

	router.Use(PanicRecovery(opts.Metrics), LogRequest())
	if opts.Metrics != nil {
		router.Use(RequestMetrics(opts.Metrics))
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// emailing endpoints are throttled per client IP
	limited := func(name string) []gin.HandlerFunc {
		if opts.RateLimiter == nil {
			return nil
		}
		return []gin.HandlerFunc{RateLimit(opts.RateLimiter, name, opts.PerMinute)}
	}

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", append(limited("signup"), authHandler.SignUp)...)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/magiclink", append(limited("magiclink"), authHandler.MagicLink)...)
			authGroup.POST("/resend", append(limited("resend"), authHandler.ResendConfirmation)...)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.GET("/callback", authHandler.Callback)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(services.Auth))
	{
		protected.GET("/session", authHandler.Session)
		protected.POST("/auth/logout", authHandler.Logout)

		profileGroup := protected.Group("/profile")
		{
			profileGroup.GET("", profileHandler.GetProfile)
			profileGroup.PATCH("", profileHandler.UpdateProfile)
			profileGroup.POST("/avatar", profileHandler.RequestAvatarUpload)
			profileGroup.PUT("/avatar", profileHandler.ConfirmAvatar)
		}

		protected.GET("/equipment", catalogHandler.ListEquipment)

		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.GET("", catalogHandler.ListExercises)
			exerciseGroup.POST("", catalogHandler.CreateExercise)
			exerciseGroup.GET("/:id", catalogHandler.GetExercise)
			exerciseGroup.PUT("/:id", catalogHandler.UpdateExercise)
			exerciseGroup.DELETE("/:id", catalogHandler.DeleteExercise)
		}

		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.POST("", workoutHandler.SaveWorkout)
			// static segment wins over :id in gin's router
			workoutGroup.GET("/draft", draftHandler.GetDraft)
			workoutGroup.DELETE("/draft", draftHandler.DiscardDraft)
			workoutGroup.POST("/draft/actions", draftHandler.Dispatch)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
		}

		protected.GET("/stats/volume", workoutHandler.Volume)
	}
}
