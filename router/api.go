package router

import (
	"database/sql"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/iste-sc/portal/authz"
	"github.com/iste-sc/portal/handlers"
	"github.com/iste-sc/portal/internal/config"
	"github.com/iste-sc/portal/services"
)

func NewGinRouter(pg *sql.DB, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Access-Key, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize services
	cfg := config.App
	storageService := services.NewStorageService(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
	supabaseAuth := services.NewSupabaseAuthService(cfg.SupabaseURL, cfg.SupabaseJWTSecret)
	authService := services.NewAuthService(cfg.SupabaseURL, cfg.SupabaseAnonKey)

	resolver := authz.NewProfileResolver(pg, rdb, cfg.Guard.RoleCacheTTL)
	profileService := services.NewProfileService(pg, supabaseAuth, resolver)

	eventService := services.NewEventService(pg)
	registrationService := services.NewRegistrationService(pg, storageService, cfg.PaymentProofBucket)
	certificateService := services.NewCertificateService(pg)
	accessKeyService := services.NewAccessKeyService(pg)
	galleryService := services.NewGalleryService(pg, storageService, cfg.GalleryBucket)
	notificationService := services.NewNotificationService(pg, rdb)
	teamService := services.NewTeamService(pg)
	contactService := services.NewContactService(pg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(profileService)
	eventHandler := handlers.NewEventHandler(eventService, storageService, cfg.GalleryBucket)
	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	certificateHandler := handlers.NewCertificateHandler(certificateService, accessKeyService)
	galleryHandler := handlers.NewGalleryHandler(galleryService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	teamHandler := handlers.NewTeamHandler(teamService)
	contactHandler := handlers.NewContactHandler(contactService)

	// Initialize the route guard middleware
	gm := authz.NewGuardMiddleware(supabaseAuth, resolver, profileService, cfg.Guard.SessionCheckTimeout)

	// Health check and frontend bootstrap config
	r.GET("/env", func(c *gin.Context) {
		env := os.Getenv("ISTE_ENV")
		if env == "" {
			env = "development"
		}
		c.Header("x-iste-env", env)

		supabaseURL := cfg.PublicSupabaseURL
		if supabaseURL == "" {
			supabaseURL = cfg.SupabaseURL
		}
		c.JSON(200, gin.H{
			"supabase_url":      supabaseURL,
			"supabase_anon_key": cfg.SupabaseAnonKey,
		})
	})

	// Redirect targets for guard denials. The SPA renders the actual pages;
	// these keep the paths resolvable for non-browser clients.
	r.GET(authz.SignInPath, func(c *gin.Context) {
		c.JSON(200, gin.H{"page": "auth"})
	})
	r.GET(authz.UnauthorizedPath, func(c *gin.Context) {
		c.JSON(200, gin.H{"page": "unauthorized"})
	})

	// PUBLIC ENDPOINTS (no authentication required)
	r.POST("/auth/signin", authHandler.SignIn)
	r.POST("/auth/signup", authHandler.SignUp)
	r.POST("/auth/signout", authHandler.SignOut)

	r.GET("/events", eventHandler.ListPublic)
	r.GET("/events/:id", eventHandler.Get)
	r.POST("/events/:id/register", registrationHandler.Create)
	r.POST("/join", registrationHandler.Create)

	r.GET("/gallery", galleryHandler.List)
	r.GET("/gallery/albums", galleryHandler.Albums)
	r.GET("/team", teamHandler.List)
	r.POST("/contact", contactHandler.Create)
	r.GET("/certificates/verify/:code", certificateHandler.Verify)

	// SIGNED-IN ENDPOINTS (any role, shared by every dashboard)
	api := r.Group("/api")
	api.Use(gm.RequireSession())
	{
		api.GET("/me", profileHandler.Me)
		api.PATCH("/me", profileHandler.UpdateMe)
		api.GET("/registrations", registrationHandler.Mine)
		api.GET("/certificates", certificateHandler.Mine)
		api.GET("/notifications", notificationHandler.Mine)
		api.POST("/devices", notificationHandler.RegisterDevice)
	}

	// ROLE-GATED DASHBOARDS
	// Each subtree is guarded by the requirement table; the member pages
	// mounted under a prefix never run unless the guard reached Allowed.
	member := r.Group("/dashboard/member")
	member.Use(gm.RequireRoute("/dashboard/member"))
	{
		member.GET("", dashboardIndex("member"))
	}

	execom := r.Group("/dashboard/execom")
	execom.Use(gm.RequireRoute("/dashboard/execom"))
	{
		execom.GET("", dashboardIndex("execom"))
		execom.GET("/events", eventHandler.ListAll)
		execom.POST("/events", eventHandler.Create)
		execom.PATCH("/events/:id", eventHandler.Update)
		execom.POST("/events/:id/poster", eventHandler.UploadPoster)
		execom.GET("/registrations", registrationHandler.List)
		execom.GET("/registrations/:id", registrationHandler.Get)
		execom.POST("/gallery", galleryHandler.Upload)
		execom.DELETE("/gallery/:id", galleryHandler.Delete)
		execom.POST("/notifications", notificationHandler.Create)
		execom.GET("/team", teamHandler.ListAll)
		execom.POST("/team", teamHandler.Create)
		execom.PUT("/team/:id", teamHandler.Update)
		execom.DELETE("/team/:id", teamHandler.Delete)
		execom.GET("/messages", contactHandler.List)
		execom.PUT("/messages/:id/read", contactHandler.MarkRead)
		execom.DELETE("/messages/:id", contactHandler.Delete)
	}

	treasurer := r.Group("/dashboard/treasurer")
	treasurer.Use(gm.RequireRoute("/dashboard/treasurer"))
	{
		treasurer.GET("", dashboardIndex("treasurer"))
		treasurer.GET("/registrations", registrationHandler.List)
		treasurer.GET("/registrations/:id", registrationHandler.Get)
		treasurer.PUT("/registrations/:id/review", registrationHandler.Review)
	}

	faculty := r.Group("/dashboard/faculty")
	faculty.Use(gm.RequireRoute("/dashboard/faculty"))
	{
		faculty.GET("", dashboardIndex("faculty"))
		faculty.GET("/events", eventHandler.ListAll)
		faculty.GET("/registrations", registrationHandler.List)
		faculty.GET("/stats", profileHandler.Stats)
	}

	admin := r.Group("/dashboard/admin")
	admin.Use(gm.RequireRoute("/dashboard/admin"))
	{
		admin.GET("", dashboardIndex("admin"))
		admin.GET("/stats", profileHandler.Stats)
		admin.GET("/profiles", profileHandler.List)
		admin.PUT("/profiles/:id/role", profileHandler.SetRole)
		admin.DELETE("/profiles/:id", profileHandler.Deactivate)
		admin.DELETE("/events/:id", eventHandler.Delete)
		admin.POST("/certificates", certificateHandler.Issue)
		admin.PUT("/certificates/:id/revoke", certificateHandler.Revoke)
		admin.GET("/events/:id/certificates", certificateHandler.ListByEvent)
		admin.POST("/access-keys", certificateHandler.CreateAccessKey)
		admin.GET("/access-keys", certificateHandler.ListAccessKeys)
		admin.DELETE("/access-keys/:id", certificateHandler.RevokeAccessKey)
		admin.GET("/notifications", notificationHandler.ListAll)
	}

	log.Printf("Router initialized with %d role-gated dashboards", len(authz.ProtectedPrefixes()))
	return r
}

// dashboardIndex answers the landing request for a dashboard subtree. The
// SPA owns the actual markup; this confirms the gate passed and names the
// surface for API clients.
func dashboardIndex(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"dashboard": name,
			"user_id":   c.GetString(authz.ContextKeyUserID),
			"role":      c.GetString(authz.ContextKeyUserRole),
		})
	}
}
