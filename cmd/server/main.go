package main

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/saas-auth-api/internal/config"
	"github.com/iliyamo/saas-auth-api/internal/database"
	"github.com/iliyamo/saas-auth-api/internal/email"
	"github.com/iliyamo/saas-auth-api/internal/handler"
	"github.com/iliyamo/saas-auth-api/internal/oauth"
	"github.com/iliyamo/saas-auth-api/internal/repository"
	"github.com/iliyamo/saas-auth-api/internal/router"
	"github.com/iliyamo/saas-auth-api/internal/token"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient() // nil disables rate limiting

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, token.WithTTLs(
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
		time.Duration(cfg.VerifyTTLHours)*time.Hour,
		time.Duration(cfg.ResetTTLMin)*time.Minute,
	))

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	mail := email.NewAMQPSender()

	providers := map[string]oauth.Provider{}
	if cfg.GoogleClientID != "" {
		providers["google"] = oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleSecret, cfg.BackendURL+"/v1/auth/google/callback")
	}
	if cfg.GitHubClientID != "" {
		providers["github"] = oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubSecret, cfg.BackendURL+"/v1/auth/github/callback")
	}

	authH := handler.NewAuthHandler(cfg, users, sessions, issuer, mail)
	oauthH := handler.NewOAuthHandler(cfg, users, sessions, issuer, providers)
	userH := handler.NewUserHandler(cfg, users, sessions)
	billingH := handler.NewBillingHandler(nil) // external checkout collaborator wired in deployment

	// Deliver queued email in the background; reconnects on broker loss.
	go func() {
		if err := email.StartConsumer(); err != nil {
			log.Printf("email-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, oauthH, rdb)
	router.RegisterUsers(e, userH, issuer, users)
	router.RegisterPayments(e, billingH, issuer, users)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
