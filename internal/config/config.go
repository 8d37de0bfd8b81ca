// Package config loads application configuration from environment
// variables. A .env file is honored in development via godotenv.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Strings for identifiers
// and secrets, ints for durations and costs.
type Config struct {
	Env              string // application environment ("dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTSecret        string // signs access, verification and reset tokens
	JWTRefreshSecret string // signs refresh tokens only
	AccessTTLMin     int    // access token time-to-live in minutes
	RefreshTTLDays   int    // refresh token time-to-live in days
	VerifyTTLHours   int    // email-verification token time-to-live in hours
	ResetTTLMin      int    // password-reset token time-to-live in minutes
	BcryptCost       int    // bcrypt cost for password hashing
	FrontendURL      string // where OAuth callbacks land after login
	GoogleClientID   string // Google OAuth client id (empty disables Google)
	GoogleSecret     string // Google OAuth client secret
	GitHubClientID   string // GitHub OAuth client id (empty disables GitHub)
	GitHubSecret     string // GitHub OAuth client secret
	BackendURL       string // public base URL, used to build OAuth redirect URLs
}

// Load reads configuration from the environment. Required variables are
// enforced by must() and missing values cause the program to exit.
func Load() Config {
	_ = godotenv.Load() // best effort; real env vars win

	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessTTLMin:     envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays:   envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		VerifyTTLHours:   envInt("VERIFY_TOKEN_TTL_HOURS", 24),
		ResetTTLMin:      envInt("RESET_TOKEN_TTL_MIN", 60),
		BcryptCost:       envInt("BCRYPT_COST", 12),
		FrontendURL:      envStr("FRONTEND_URL", "http://localhost:3000"),
		BackendURL:       envStr("BACKEND_URL", "http://localhost:8080"),
		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleSecret:     os.Getenv("GOOGLE_CLIENT_SECRET"),
		GitHubClientID:   os.Getenv("GITHUB_CLIENT_ID"),
		GitHubSecret:     os.Getenv("GITHUB_CLIENT_SECRET"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
