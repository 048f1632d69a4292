package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	gmailv1 "google.golang.org/api/gmail/v1"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"invoice-vault-go/internal/config"
	"invoice-vault-go/internal/credentials"
	"invoice-vault-go/internal/database"
	"invoice-vault-go/internal/drivesink"
	"invoice-vault-go/internal/gmailsource"
	"invoice-vault-go/internal/handlers"
	"invoice-vault-go/internal/imapsource"
	"invoice-vault-go/internal/metrics"
	"invoice-vault-go/internal/repository"
	"invoice-vault-go/internal/scanner"
	"invoice-vault-go/internal/scheduler"
	"invoice-vault-go/internal/sheetsink"
)

func main() {
	// Configure logging
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Invoice Vault Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	// Initialize database
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	m := metrics.NewMetrics()

	// Credential manager backs every Google API client with one managed
	// bearer credential.
	oauthConfig := newOAuthConfig(&cfg.Google)
	credStore := credentials.NewGormStore(db)
	credManager := credentials.NewManager(credStore, credentials.NewOAuthRefresher(oauthConfig))

	ctx := context.Background()

	// Initialize mail source
	var mail scanner.MailSource
	var closeMail func() error
	if cfg.Mailbox.UseIMAP {
		imapSource, err := imapsource.New(imapsource.Config{
			Host:        cfg.Mailbox.IMAPHost,
			Port:        cfg.Mailbox.IMAPPort,
			User:        cfg.Mailbox.IMAPUser,
			Password:    cfg.Mailbox.IMAPPassword,
			MarkerLabel: cfg.Mailbox.MarkerLabel,
		})
		if err != nil {
			logrus.Fatalf("Failed to create IMAP source: %v", err)
		}
		mail = imapSource
		closeMail = imapSource.Close
		logrus.Info("Using IMAP for email fetching")
	} else {
		gmailSource, err := gmailsource.New(ctx, credManager, cfg.Google.UserEmail, cfg.Mailbox.MarkerLabel)
		if err != nil {
			logrus.Fatalf("Failed to create Gmail source: %v", err)
		}
		mail = gmailSource
		closeMail = func() error { return nil }
		logrus.Info("Using Gmail API for email fetching")
	}

	// Initialize archive and ledger sinks
	archive, err := drivesink.New(ctx, credManager)
	if err != nil {
		logrus.Fatalf("Failed to create Drive archive: %v", err)
	}

	ledger, err := sheetsink.New(ctx, credManager)
	if err != nil {
		logrus.Fatalf("Failed to create Sheets ledger: %v", err)
	}

	// Initialize orchestrator and scheduler
	repo := repository.New(db)
	orchestrator := scanner.NewOrchestrator(mail, archive, ledger, repo, m, scanner.Config{
		Query:         cfg.Mailbox.Query,
		ArchiveFolder: cfg.Archive.FolderName,
		LedgerName:    cfg.Ledger.SpreadsheetName,
	})
	sched := scheduler.NewScheduler(&cfg.Scheduler, orchestrator)

	// Initialize HTTP handlers
	h := handlers.NewHandlers(db, repo, sched, credManager, oauthConfig)

	// Setup HTTP server
	router := setupRouter(h)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start scheduler
	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := closeMail(); err != nil {
		logrus.Errorf("Failed to close mail source: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}

// newOAuthConfig builds the OAuth2 client shared by Gmail, Drive and
// Sheets access.
func newOAuthConfig(cfg *config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmailv1.GmailModifyScope,
			drivev3.DriveFileScope,
			sheetsv4.SpreadsheetsScope,
		},
		Endpoint: google.Endpoint,
	}
}

// setupRouter sets up the HTTP router with middleware
func setupRouter(h *handlers.Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	h.SetupRoutes(router)

	return router
}

// loggerMiddleware adds logging middleware
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
