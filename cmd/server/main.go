package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront/internal/cache"
	"storefront/internal/domain"
	h "storefront/internal/http"
	"storefront/internal/pricing"
	"storefront/internal/publisher"
	"storefront/internal/repository"
	"storefront/internal/service"
)

type Config struct {
	HTTPPort        string
	Store           string // "postgres" or "memory"
	DBHost          string
	DBPort          int
	DBUser          string
	DBPassword      string
	DBName          string
	MigrationsDir   string
	RedisAddr       string
	KafkaBrokers    []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Store:           getEnv("STORE", "postgres"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          intEnv("DB_PORT", 5432),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", "postgres"),
		DBName:          getEnv("DB_NAME", "storefront"),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "./migrations"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		KafkaBrokers:    splitEnv("KAFKA_BROKERS", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func main() {
	cfg := loadConfig()

	var store repository.Store
	switch cfg.Store {
	case "memory":
		mem := repository.NewMemory()
		seedDevData(mem)
		store = mem
		log.Println("running with in-memory store (dev mode)")
	default:
		cred := &repository.Credentials{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsDir,
		}
		pg, err := repository.NewPostgres(cred)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.RunMigrations(cred); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		store = pg
		log.Println("connected to postgres")
	}

	var cartCache cache.CartCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cartCache = cache.NewRedisCache(client)
	}

	var notifier publisher.Notifier = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kn := publisher.NewKafkaNotifier(cfg.KafkaBrokers...)
		defer kn.Close()
		notifier = kn
	}

	carts := service.NewCartService(store, cartCache)
	checkout := service.NewCheckoutService(store, cartCache, notifier, pricing.ZeroDiscount)
	orders := service.NewOrderService(store, notifier)

	cartHandler := h.NewCartHandler(carts)
	ordersHandler := h.NewOrdersHandler(checkout, orders)
	adminHandler := h.NewAdminHandler(orders)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.RequireUser)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/", cartHandler.AddLine)
				r.Post("/merge", cartHandler.Merge)
				r.Patch("/{lineID}", cartHandler.SetQuantity)
				r.Delete("/{lineID}", cartHandler.RemoveLine)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordersHandler.Create)
				r.Get("/", ordersHandler.List)
				r.Get("/{orderID}", ordersHandler.Get)
				r.Patch("/{orderID}", ordersHandler.Patch)
			})
		})
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Patch("/admin/orders/{orderID}", adminHandler.PatchOrder)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront core starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}

// seedDevData gives the in-memory dev mode something to sell.
func seedDevData(mem *repository.Memory) {
	variantPrice := 129.0
	mem.SeedProduct(domain.Product{ID: 1, Name: "Espresso Grinder", SKU: "GRND-01", Price: 349, Quantity: 12, IsActive: true})
	mem.SeedProduct(domain.Product{ID: 2, Name: "Pour-Over Kettle", SKU: "KETL-02", Price: 89, Quantity: 40, IsActive: true})
	mem.SeedProduct(domain.Product{ID: 3, Name: "Filter Papers", SKU: "FLTR-03", Price: 9.5, Quantity: 500, IsActive: true})
	mem.SeedVariant(domain.Variant{ID: 10, ProductID: 2, Name: "Matte Black", SKU: "KETL-02-BLK", Price: &variantPrice, Quantity: 15})
	mem.SeedAddress(domain.Address{
		ID:     uuid.MustParse("7b0d5c6e-0000-4a5b-9c3d-2f4e6a8b0c1d"),
		UserID: "dev-user",
		FullName: "Dev User", Line1: "1 Test Street", City: "Devtown", PostalCode: "00000", Country: "NL",
	})
}
