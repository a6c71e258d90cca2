package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/appendiscan/backend/internal/archive"
	"github.com/appendiscan/backend/internal/chat"
	"github.com/appendiscan/backend/internal/detect"
	"github.com/appendiscan/backend/internal/metrics"
	"github.com/appendiscan/backend/internal/quicktest"
	"github.com/appendiscan/backend/internal/report"
	"github.com/appendiscan/backend/internal/store"
)

// services holds the request handlers and the dependencies the router probes.
type services struct {
	store     store.Store
	detect    *detect.Handler
	quicktest *quicktest.Handler
	report    *report.Handler
	chat      *chat.Handler
	chatLimit *ipRateLimiter
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := configureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("logging: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	if err := detect.InitRuntime(cfg.ONNXRuntimeLib); err != nil {
		log.Fatalf("onnxruntime: %v", err)
	}
	defer detect.ShutdownRuntime()

	th := detect.Thresholds{Confidence: float32(cfg.DetectConfidence), IoU: float32(cfg.DetectIoU)}
	model1, err := detect.LoadONNXModel(detect.ModelConfig{Name: "model1", Path: cfg.Model1Path, LabelsPath: cfg.Model1Labels, Thresholds: th})
	if err != nil {
		log.Fatalf("load detection model: %v", err)
	}
	defer model1.Close()
	model2, err := detect.LoadONNXModel(detect.ModelConfig{Name: "model2", Path: cfg.Model2Path, LabelsPath: cfg.Model2Labels, Thresholds: th})
	if err != nil {
		log.Fatalf("load detection model: %v", err)
	}
	defer model2.Close()

	predictor, err := quicktest.LoadPredictor(cfg.ClassifierPath, cfg.ColumnsPath)
	if err != nil {
		log.Fatalf("load classifier: %v", err)
	}

	engine, err := chat.New(ctx, chat.Options{
		Provider:     cfg.ChatProvider,
		GroqAPIKey:   cfg.GroqAPIKey,
		GroqModel:    cfg.GroqModel,
		GroqBaseURL:  cfg.GroqBaseURL,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		log.Fatalf("chat: %v", err)
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	var archiver detect.Archiver
	if cfg.ArchiveEnabled {
		m, err := archive.NewMinIO(ctx, archive.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatalf("archive: %v", err)
		}
		archiver = m
	}

	var chatLimit *ipRateLimiter
	if cfg.ChatRateLimit > 0 {
		chatLimit = newIPRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
	}

	router := setupRouter(services{
		store:     st,
		detect:    detect.NewHandler(detect.NewGateway(model1, model2), archiver),
		quicktest: quicktest.NewHandler(st, predictor),
		report:    report.NewHandler(report.NewRenderer()),
		chat:      chat.NewHandler(engine),
		chatLimit: chatLimit,
	}, cfg.MaxBodyBytes)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.WithFields(log.Fields{
		"port":  cfg.Port,
		"store": cfg.StoreDriver,
		"chat":  engine.Name(),
	}).Info("server listening")
	waitForShutdown(server)
}

func openStore(ctx context.Context, cfg *Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case storeFirestore:
		return store.NewFirestore(ctx, cfg.FirebaseCredentials, cfg.FirebaseProjectID, cfg.Collection)
	case storePostgres:
		return store.ConnectPostgres(ctx, cfg.DatabaseURL, cfg.Collection)
	case storeMemory:
		log.Warn("using in-memory store; questionnaires are lost on restart")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func configureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func setupRouter(svc services, maxBody int64) *gin.Engine {
	router := gin.New()
	router.Use(
		requestLogger(),
		gin.Recovery(),
		metrics.Middleware(),
		limitBodySize(maxBody),
		mirrorRequestHeaders(),
		cors.New(cors.Config{
			AllowOriginFunc:  func(string) bool { return true },
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := svc.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"store":  fmt.Sprintf("unhealthy: %v", err),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"store":  "ok",
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.POST("/predict", svc.detect.Predict)
	router.POST("/generate-report/", svc.report.Generate)
	router.POST("/submit_quicktest", svc.quicktest.Submit)
	router.POST("/predict_quicktest", svc.quicktest.Predict)
	router.GET("/quicktest_stats", svc.quicktest.Stats)
	router.POST("/ask", svc.chatLimit.middleware(), svc.chat.Ask)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// mirrorRequestHeaders answers a preflight with the headers it asked for.
// Browsers ignore a "*" wildcard on credentialed requests, so the list has to
// be explicit.
func mirrorRequestHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions && c.GetHeader("Origin") != "" {
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				c.Header("Access-Control-Allow-Headers", requested)
				c.Writer.Header().Add("Vary", "Access-Control-Request-Headers")
			}
		}
		c.Next()
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
