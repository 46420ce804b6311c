package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/config"
	"github.com/suhanipatel/faceglow-api/database"
	"github.com/suhanipatel/faceglow-api/handlers"
	auth_handlers "github.com/suhanipatel/faceglow-api/handlers/auth"
	course_handlers "github.com/suhanipatel/faceglow-api/handlers/course"
	media_handlers "github.com/suhanipatel/faceglow-api/handlers/media"
	purchase_handlers "github.com/suhanipatel/faceglow-api/handlers/purchase"
	webhook_handlers "github.com/suhanipatel/faceglow-api/handlers/webhook"
	"github.com/suhanipatel/faceglow-api/services"
	mediasvc "github.com/suhanipatel/faceglow-api/services/media"
	"github.com/suhanipatel/faceglow-api/services/stripe"
	"github.com/suhanipatel/faceglow-api/utils"
	"github.com/suhanipatel/faceglow-api/utils/auth"
	"github.com/suhanipatel/faceglow-api/utils/cache"
	"github.com/suhanipatel/faceglow-api/utils/middleware"
	"gorm.io/gorm"
)

// Services bundles the service layer so the app can share it with the cron
// manager
type Services struct {
	Access      *services.AccessService
	Fulfillment *services.FulfillmentService
	Courses     *services.CourseService
}

func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) *Services {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "faceglow-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs the course read cache and brute force protection; the API
	// stays functional without it
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Caching and brute force protection will be disabled.", err)
		redisCache = nil
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Service layer
	gateway := stripe.NewClient(stripe.Config{
		SecretKey: env.STRIPE_SECRET_KEY,
	})
	accessService := services.NewAccessService(db)
	fulfillmentService := services.NewFulfillmentService(db, gateway)
	courseService := services.NewCourseService(db, redisCache)

	// Media storage is optional in local development
	var spacesClient *mediasvc.SpacesClient
	if env.SPACES_ACCESS_KEY != "" {
		spacesClient, err = mediasvc.NewSpacesClient(mediasvc.SpacesConfig{
			AccessKey: env.SPACES_ACCESS_KEY,
			SecretKey: env.SPACES_SECRET_KEY,
			Bucket:    env.SPACES_BUCKET,
			Region:    env.SPACES_REGION,
			Endpoint:  env.SPACES_ENDPOINT,
			CDNURL:    env.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize media storage: %v", err)
		}
	}

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(courseService)
	lessonHandler := course_handlers.NewLessonHandler(db, accessService)
	purchaseHandler := purchase_handlers.NewPurchaseHandler(fulfillmentService, accessService)
	webhookHandler := webhook_handlers.NewStripeHandler(fulfillmentService, env.STRIPE_WEBHOOK_SECRET)
	mediaHandler := media_handlers.NewMediaHandler(spacesClient)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    "http://localhost:3000,http://localhost:5173",
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// API v1 group
	api := app.Group("/api/v1")
	api.Get("/health", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Course catalog (public reads; access check works anonymously too)
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Get("/:id/sections", courseHandler.GetCourseSections)
	courses.Get("/:id/lessons", courseHandler.GetCourseLessons)
	courses.Get("/:id/access", authMiddleware.Optional(), purchaseHandler.CheckAccess)

	// Section content
	sections := api.Group("/sections")
	sections.Get("/:id/lessons", courseHandler.GetSectionLessons)
	sections.Get("/:id/exercises", courseHandler.GetSectionExercises)

	// Individual lessons and exercises (video gated by access)
	api.Get("/lessons/:id", authMiddleware.Optional(), lessonHandler.GetLesson)
	api.Get("/exercises/:id", authMiddleware.Optional(), lessonHandler.GetExercise)

	// Purchases (protected)
	purchases := api.Group("/purchases", authMiddleware.Required())
	purchases.Post("/intent", purchaseHandler.CreateIntent)
	purchases.Post("/confirm", purchaseHandler.Confirm)

	me := api.Group("/me", authMiddleware.Required())
	me.Get("/purchases", purchaseHandler.ListPurchases)
	me.Get("/access", purchaseHandler.ListAccess)

	// Stripe webhook (public; authenticated by signature)
	api.Post("/webhooks/stripe", webhookHandler.HandleWebhook)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/courses", courseHandler.ListAllCourses)
	admin.Post("/courses", courseHandler.CreateCourse)
	admin.Put("/courses/:id", courseHandler.UpdateCourse)
	admin.Delete("/courses/:id", courseHandler.DeleteCourse)

	admin.Get("/lessons", lessonHandler.ListLessons)
	admin.Post("/lessons", lessonHandler.CreateLesson)
	admin.Put("/lessons/:id", lessonHandler.UpdateLesson)
	admin.Delete("/lessons/:id", lessonHandler.DeleteLesson)

	admin.Get("/exercises", lessonHandler.ListExercises)
	admin.Post("/exercises", lessonHandler.CreateExercise)
	admin.Delete("/exercises/:id", lessonHandler.DeleteExercise)

	admin.Post("/media", mediaHandler.Upload)
	admin.Delete("/media/*", mediaHandler.Delete)

	return &Services{
		Access:      accessService,
		Fulfillment: fulfillmentService,
		Courses:     courseService,
	}
}
