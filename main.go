package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"uglies/internal/checkout"
	"uglies/internal/config"
	"uglies/internal/database"
	"uglies/internal/events"
	"uglies/internal/handlers"
	"uglies/internal/idempotency"
	"uglies/internal/metrics"
	"uglies/internal/middleware"
	"uglies/internal/models"
	"uglies/internal/telemetry"
)

const serviceName = "uglies"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Stdout:       cfg.TraceStdout,
	})
	if err != nil {
		log.Fatal(err)
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("[DB] [WARN] index warning: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var sink events.Publisher = events.LogPublisher{}
	var kafka *events.KafkaPublisher
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafka = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		sink = kafka
		log.Printf("[EVENTS] [INFO] publishing to kafka topic %s", cfg.KafkaTopic)
	}
	publisher := events.NewDispatcher(database.NewNotificationStore(db), sink)

	var idem handlers.IdempotencyStore
	if cfg.RedisURL != "" {
		rdb, err := idempotency.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal(err)
		}
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		log.Println("[ORDER] [INFO] idempotent checkout enabled")
	}

	orders := checkout.NewService(database.NewCheckoutStore(db), publisher, m)
	assets := handlers.AssetStore{Root: cfg.PublicDir, BaseURL: cfg.PublicBaseURL}

	r := newRouter(cfg, db, m, publisher, orders, idem, assets)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[HTTP] [INFO] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("[HTTP] [INFO] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP] [WARN] shutdown: %v", err)
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Printf("[EVENTS] [WARN] close kafka writer: %v", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("[TELEMETRY] [WARN] shutdown: %v", err)
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Printf("[DB] [WARN] disconnect: %v", err)
	}
}

func newRouter(
	cfg config.Config,
	db *mongo.Database,
	m *metrics.Metrics,
	publisher events.Publisher,
	orders handlers.OrderCreator,
	idem handlers.IdempotencyStore,
	assets handlers.AssetStore,
) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.RequestID(), m.Middleware())
	r.Static("/public", cfg.PublicDir)

	r.GET("/healthz", handlers.Healthz(db))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	api := r.Group("/", limiter.Middleware())

	userAuth := middleware.UserAuth(cfg.JWTSecret)

	api.POST("/auth/register", handlers.Register(db, cfg.JWTSecret, cfg.AccessTokenTTL))
	api.POST("/auth/login", handlers.Login(db, cfg.JWTSecret, cfg.AccessTokenTTL))
	api.GET("/auth/me", userAuth, handlers.GetMe(db))

	api.GET("/products", handlers.GetProducts(db, assets))
	api.GET("/products/categories", handlers.GetProductCategories(db))
	api.GET("/products/grades", handlers.GetConditionGrades(db))
	api.GET("/products/:id", handlers.GetProduct(db, assets))

	api.GET("/farmers", handlers.GetFarmers(db, assets))
	api.GET("/farmers/:id", handlers.GetFarmer(db, assets))
	api.GET("/farmers/:id/products", handlers.GetFarmerProducts(db, assets))

	api.GET("/campaigns", handlers.GetCampaigns(db, assets))
	api.GET("/campaigns/neighborhood/:name", handlers.GetNeighborhoodCampaigns(db, assets))
	api.GET("/campaigns/invite/:code", handlers.GetCampaignByInvite(db, assets))
	api.GET("/campaigns/:id", handlers.GetCampaign(db, assets))

	api.GET("/neighborhoods", handlers.GetNeighborhoods(db))
	api.GET("/neighborhoods/:name/leaderboard", handlers.GetNeighborhoodLeaderboard(db))

	cart := api.Group("/cart", userAuth)
	{
		cart.GET("", handlers.GetCart(db, assets))
		cart.POST("", handlers.AddToCart(db))
		cart.PUT("/:id", handlers.UpdateCartItem(db))
		cart.DELETE("/:id", handlers.RemoveCartItem(db))
		cart.DELETE("", handlers.ClearCart(db))
	}

	ordersGroup := api.Group("/orders", userAuth)
	{
		ordersGroup.POST("", handlers.CreateOrder(orders, idem))
		ordersGroup.GET("", handlers.GetMyOrders(db, assets))
		ordersGroup.GET("/:id", handlers.GetMyOrder(db, assets))
	}

	user := api.Group("/user", userAuth)
	{
		user.GET("/profile", handlers.GetProfile(db))
		user.PUT("/profile", handlers.UpdateProfile(db))
		user.GET("/impact", handlers.GetMyImpact(db))
		user.GET("/campaigns", handlers.GetMyCampaigns(db, assets))
		user.POST("/campaigns", handlers.CreateCampaign(db))
		user.GET("/notifications", handlers.GetNotifications(db))
		user.POST("/notifications/:id/read", handlers.MarkNotificationRead(db))
	}

	admin := api.Group("/admin/api", userAuth, middleware.RequireRole(handlers.ProfileRoleLookup(db), models.RoleAdmin))
	{
		admin.GET("/products", handlers.GetAllProducts(db, assets))
		admin.POST("/products", handlers.CreateProduct(db, assets))
		admin.PUT("/products/:id", handlers.UpdateProduct(db, assets))
		admin.POST("/products/:id/stock", handlers.AdjustProductStock(db))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db))

		admin.POST("/farmers", handlers.CreateFarmer(db, assets))
		admin.PUT("/farmers/:id", handlers.UpdateFarmer(db, assets))

		admin.GET("/orders", handlers.GetAllOrders(db, assets))
		admin.PATCH("/orders/:id/status", handlers.UpdateOrderStatus(db, publisher))

		admin.PATCH("/campaigns/:id/status", handlers.UpdateCampaignStatus(db))

		admin.POST("/users/:id/promote", handlers.PromoteUser(db))
		admin.GET("/impact", handlers.GetPlatformImpact(db))
	}

	return r
}
