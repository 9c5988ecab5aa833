package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hashicorp/go-hclog"
	"github.com/streadway/amqp"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"catalog/internal/config"
	"catalog/internal/handlers"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/pkg/kafka"
	"catalog/pkg/rabbitmq"
)

// App is the wired HTTP application and the resources it owns.
type App struct {
	Fiber   *fiber.App
	logger  hclog.Logger
	closers []func() error
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := hclog.New(&hclog.LoggerOptions{
		Name:  "catalog",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	app, err := NewApp(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	appLogger.Info("Starting server", "port", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	appLogger.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		appLogger.Error("Error during shutdown", "error", err)
	}
	appLogger.Info("Server gracefully stopped")
}

// NewApp wires repositories, event publishers, services and handlers according to cfg.
func NewApp(cfg config.Config, appLogger hclog.Logger) (*App, error) {
	a := &App{logger: appLogger}

	productRepo, err := a.productRepository(cfg)
	if err != nil {
		_ = a.Shutdown()
		return nil, err
	}

	var opts []services.Option
	publisher, err := a.eventPublisher(cfg)
	if err != nil {
		_ = a.Shutdown()
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}

	productService := services.NewProductService(productRepo, appLogger.Named("products"), opts...)
	productHandler := handlers.NewProductHandler(
		productService,
		services.PaginationMode(cfg.PaginationMode),
		appLogger.Named("http"),
	)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	productHandler.RegisterRoutes(app)
	productHandler.RegisterRoutes(app.Group("/api/v1"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	a.Fiber = app
	return a, nil
}

func (a *App) productRepository(cfg config.Config) (repositories.ProductRepository, error) {
	if cfg.DatabaseDriver == repositories.DriverMemory {
		return repositories.NewMemoryProductRepository(), nil
	}

	db, err := repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if cfg.DatabaseAutoMigrate {
		if err := repositories.Migrate(db); err != nil {
			return nil, err
		}
	}
	return repositories.NewGORMProductRepository(db), nil
}

func (a *App) eventPublisher(cfg config.Config) (services.EventPublisher, error) {
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:    cfg.RabbitMQURL,
			Queue:  cfg.RabbitMQQueue,
			Logger: a.logger.Named("rabbitmq"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.closers = append(a.closers, mqClient.Close)

		if cfg.RabbitMQConsume {
			if err := mqClient.Consume(a.handleProductEvent); err != nil {
				a.logger.Error("Failed to start RabbitMQ consumer", "error", err)
			}
		}
		return mqClient, nil

	case config.BrokerKafka:
		publisher, err := kafka.NewPublisher(kafka.Config{
			SeedBrokers: cfg.KafkaSeedBrokers(),
			Topic:       cfg.KafkaTopic,
			Logger:      a.logger.Named("kafka"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka publisher: %w", err)
		}
		a.closers = append(a.closers, func() error {
			publisher.Close()
			return nil
		})
		return publisher, nil
	}
	return nil, nil
}

// handleProductEvent logs product events read back from the queue. It only runs when
// RABBITMQ_CONSUME is set, since it competes with downstream subscribers for deliveries.
func (a *App) handleProductEvent(msg amqp.Delivery) error {
	var evt services.ProductEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return fmt.Errorf("%w: failed to decode product event: %v", rabbitmq.ErrMalformedMessage, err)
	}
	a.logger.Info("Received product event", "event", evt.Event, "id", evt.Product.ID, "tag", msg.DeliveryTag)
	return nil
}

// Shutdown stops the HTTP server and releases every resource in reverse order of acquisition.
func (a *App) Shutdown() error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
