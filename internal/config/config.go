package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	Port        string `mapstructure:"port"`
	PublicURL   string `mapstructure:"public_url"`

	// Supabase (identity provider + storage)
	SupabaseURL            string `mapstructure:"supabase_url"`
	PublicSupabaseURL      string `mapstructure:"public_supabase_url"`
	SupabaseAnonKey        string `mapstructure:"supabase_anon_key"`
	SupabaseServiceRoleKey string `mapstructure:"supabase_service_role_key"`
	SupabaseJWTSecret      string `mapstructure:"supabase_jwt_secret"` // legacy HS256 only

	// Storage buckets
	PaymentProofBucket string `mapstructure:"payment_proof_bucket"`
	GalleryBucket      string `mapstructure:"gallery_bucket"`
	CertificateBucket  string `mapstructure:"certificate_bucket"`

	// Route guard
	Guard GuardConfig `mapstructure:"guard"`

	// Push notifications
	FCMCredentialsFile string `mapstructure:"fcm_credentials_file"`
}

// GuardConfig bounds the route-guard waits. SessionCheckTimeout caps the
// initial session check before the guard falls back to a signed-out decision.
type GuardConfig struct {
	SessionCheckTimeout time.Duration `mapstructure:"session_check_timeout"`
	RoleCacheTTL        time.Duration `mapstructure:"role_cache_ttl"`
}

// App holds the global config instance
var App Config

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// Auto-load .env file if present so 'go run' works without exporting
	// env vars; missing .env is fine in production/Docker.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	v := viper.New()

	// Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("payment_proof_bucket", "payment-proofs")
	v.SetDefault("gallery_bucket", "gallery")
	v.SetDefault("certificate_bucket", "certificates")
	v.SetDefault("guard.session_check_timeout", 10*time.Second)
	v.SetDefault("guard.role_cache_ttl", 30*time.Second)

	// Config file settings
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("dev.config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("iste")

	// Bind standard environment variables (Docker/deploy compatibility)
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("public_url", "PUBLIC_URL")

	_ = v.BindEnv("supabase_url", "SUPABASE_URL")
	_ = v.BindEnv("public_supabase_url", "PUBLIC_SUPABASE_URL")
	_ = v.BindEnv("supabase_anon_key", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("supabase_service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
	_ = v.BindEnv("supabase_jwt_secret", "SUPABASE_JWT_SECRET")

	_ = v.BindEnv("payment_proof_bucket", "PAYMENT_PROOF_BUCKET")
	_ = v.BindEnv("gallery_bucket", "GALLERY_BUCKET")
	_ = v.BindEnv("certificate_bucket", "CERTIFICATE_BUCKET")

	_ = v.BindEnv("guard.session_check_timeout", "GUARD_SESSION_CHECK_TIMEOUT")
	_ = v.BindEnv("guard.role_cache_ttl", "GUARD_ROLE_CACHE_TTL")

	_ = v.BindEnv("fcm_credentials_file", "FCM_CREDENTIALS_FILE")

	v.AutomaticEnv()

	// 1. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Printf("Loaded config from: %s", v.ConfigFileUsed())
	}

	// 2. Unmarshal into struct
	if err := v.Unmarshal(&App); err != nil {
		return err
	}

	// 3. Backfill environment variables for code that still reads os.Getenv()
	setEnvIfEmpty("DATABASE_URL", App.DatabaseURL)
	setEnvIfEmpty("REDIS_URL", App.RedisURL)
	setEnvIfEmpty("PORT", App.Port)
	setEnvIfEmpty("SUPABASE_URL", App.SupabaseURL)
	setEnvIfEmpty("PUBLIC_SUPABASE_URL", App.PublicSupabaseURL)
	setEnvIfEmpty("SUPABASE_ANON_KEY", App.SupabaseAnonKey)
	setEnvIfEmpty("SUPABASE_SERVICE_ROLE_KEY", App.SupabaseServiceRoleKey)
	setEnvIfEmpty("SUPABASE_JWT_SECRET", App.SupabaseJWTSecret)

	return nil
}

func setEnvIfEmpty(key, value string) {
	if value != "" && os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
