// Package main provides the main entry point for the Clinio CRM service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinio/crm-api/app/handlers"
	"github.com/clinio/crm-api/app/middleware"
	"github.com/clinio/crm-api/app/router"
	"github.com/clinio/crm-api/app/scheduler"
	"github.com/clinio/crm-api/app/services"
	businessflow "github.com/clinio/crm-api/business_flow"
	"github.com/clinio/crm-api/config"
	"github.com/clinio/crm-api/models"
	"github.com/clinio/crm-api/repository"
	"github.com/clinio/crm-api/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Clinio CRM application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Operator{},
		&models.Treatment{},
		&models.Customer{},
		&models.Invoice{},
		&models.MessageSchedule{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService initializes the notification service
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsProvider services.SMSProvider
	var whatsappProvider services.WhatsAppProvider
	var emailProvider services.EmailProvider

	switch cfg.SMS.Provider {
	case "mock":
		smsProvider = services.NewMockSMSProvider()
	default:
		smsProvider = services.NewHTTPSMSProvider(&cfg.SMS)
	}

	switch cfg.WhatsApp.Provider {
	case "mock":
		whatsappProvider = services.NewMockWhatsAppProvider()
	default:
		whatsappProvider = services.NewHTTPWhatsAppProvider(&cfg.WhatsApp)
	}

	switch cfg.Email.Provider {
	case "mock":
		emailProvider = services.NewMockEmailProvider()
	default:
		emailProvider = services.NewSMTPEmailProvider(&cfg.Email)
	}

	return services.NewNotificationService(smsProvider, whatsappProvider, emailProvider)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	treatmentRepo := repository.NewTreatmentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	messageRepo := repository.NewMessageScheduleRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// Seed the treatment catalogue and the admin operator
	if err := treatmentRepo.EnsureSeeded(context.Background(), models.SeededTreatments()); err != nil {
		return nil, fmt.Errorf("failed to seed treatments: %w", err)
	}
	if err := ensureAdminOperator(operatorRepo, cfg); err != nil {
		return nil, err
	}

	// Initialize services
	notificationService := initializeNotificationService(cfg)
	receiptNormalizer := services.NewReceiptNormalizer()

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Log that services are initialized
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	messageFlow := businessflow.NewMessageFlow(
		db,
		customerRepo,
		messageRepo,
		notificationService,
		rc,
		&cfg.Cache,
	)

	customerFlow := businessflow.NewCustomerFlow(
		db,
		customerRepo,
		treatmentRepo,
		invoiceRepo,
		messageRepo,
		messageFlow,
	)

	invoiceFlow := businessflow.NewInvoiceFlow(
		customerRepo,
		invoiceRepo,
		receiptNormalizer,
		notificationService,
		cfg.Upload,
	)

	loginFlow := businessflow.NewLoginFlow(operatorRepo, tokenService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(loginFlow)
	customerHandler := handlers.NewCustomerHandler(customerFlow)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceFlow)
	messageHandler := handlers.NewMessageHandler(messageFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		authHandler,
		customerHandler,
		invoiceHandler,
		messageHandler,
		authMiddleware,
	)

	// Start the delivery scheduler. The startup sweep re-arms whatever was
	// pending before the last shutdown.
	sched := scheduler.NewMessageScheduler(messageFlow, cfg.Scheduler)
	messageFlow.SetScheduleHook(sched.Register)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensureAdminOperator creates the seed back-office account if it does not exist yet
func ensureAdminOperator(operatorRepo repository.OperatorRepository, cfg *config.ProductionConfig) error {
	if cfg.Admin.Email == "" {
		return nil
	}

	existing, err := operatorRepo.ByEmail(context.Background(), cfg.Admin.Email)
	if err != nil {
		return fmt.Errorf("failed to look up admin operator: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), cfg.Security.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	operator := &models.Operator{
		Email:        cfg.Admin.Email,
		FullName:     cfg.Admin.FullName,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
	}
	if err := operatorRepo.Save(context.Background(), operator); err != nil {
		return fmt.Errorf("failed to create admin operator: %w", err)
	}

	log.Printf("Admin operator created: %s", cfg.Admin.Email)
	return nil
}
