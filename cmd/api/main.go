package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/config"
	"github.com/go-eid-verify/internal/infrastructure/cookie"
	"github.com/go-eid-verify/internal/infrastructure/dynamo"
	"github.com/go-eid-verify/internal/infrastructure/itsme"
	jwtinfra "github.com/go-eid-verify/internal/infrastructure/jwt"
	s3infra "github.com/go-eid-verify/internal/infrastructure/s3"
	"github.com/go-eid-verify/internal/infrastructure/sns"
	transporthttp "github.com/go-eid-verify/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	audit := verification.MultiAuditSink{dynamo.NewAuditRepo(dynamoClient, cfg.DynamoTables.AuditEvents)}

	// S3 audit archive (optional).
	if cfg.AuditBucketName != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			log.Fatalf("s3 client: %v", err)
		}
		audit = append(audit, s3infra.NewAuditArchive(s3Client, cfg.AuditBucketName))
	}

	// SNS alerts and audit fan-out (optional, graceful fallback).
	var alerter verification.Alerter
	if cfg.AlertTopicARN != "" || cfg.AuditTopicARN != "" {
		snsClient, err := sns.NewClient(ctx, cfg)
		if err != nil {
			log.Printf("WARN: SNS not available: %v", err)
		} else {
			if cfg.AlertTopicARN != "" {
				alerter = sns.NewAlerter(snsClient, cfg.AlertTopicARN)
			}
			if cfg.AuditTopicARN != "" {
				audit = append(audit, sns.NewAuditPublisher(snsClient, cfg.AuditTopicARN))
			}
		}
	}

	persister := verification.NewPersister(
		dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.IdentityVerifications),
		dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		audit,
		verification.NewArgon2Hasher(cfg.Verification.NationalIDPepper),
		verification.WithAuditTimeout(cfg.Verification.AuditTimeout),
	)

	exchange, err := itsme.New(cfg.Provider)
	if err != nil {
		log.Fatalf("identity provider client: %v", err)
	}

	// Platform bearer tokens (optional; authenticated routes reject everything without it).
	var tokenVerifier *jwtinfra.Verifier
	if v, err := jwtinfra.LoadVerifier(cfg.JWTPublicKeyPath); err == nil {
		tokenVerifier = v
	} else {
		log.Printf("WARN: JWT verifier not available: %v", err)
	}

	cookies := cookie.NewFactory(cfg.Cookies)
	deps := &transporthttp.Deps{
		Exchange:  exchange,
		Persister: persister,
		Alerter:   alerter,
		Vaults: func(w http.ResponseWriter, r *http.Request) verification.SessionVault {
			return cookies.For(w, r)
		},
		Ready: func(ctx context.Context) error {
			return dynamo.Ping(ctx, dynamoClient, cfg.DynamoTables.IdentityVerifications)
		},
	}
	if tokenVerifier != nil {
		deps.TokenVerifier = tokenVerifier
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Provider.ExchangeTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, provider=%s)", cfg.AppPort, cfg.AppEnv, cfg.Provider.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	stop()
	persister.Wait()
	log.Println("Server stopped")
}
