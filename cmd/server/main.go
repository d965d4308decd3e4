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

	"ticket-service/config"
	"ticket-service/internal/api"
	"ticket-service/internal/archive"
	"ticket-service/internal/broker"
	"ticket-service/internal/document"
	"ticket-service/internal/mailer"
	"ticket-service/internal/models"
	"ticket-service/internal/service"
	"ticket-service/internal/store"
	"ticket-service/internal/util"
	"ticket-service/internal/worker"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", "", "path to a .env file (default .env)")
	rulesFile := flag.String("markup-rules", "", "path to a YAML markup and labor rules file")
	flag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg := config.Load(envFiles...)
	if *rulesFile != "" {
		cfg.Markups.RulesFile = *rulesFile
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ticket service")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("ticket-service", cfg.Observ.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx := context.Background()

	records, err := store.Open(store.Options{
		Driver:        cfg.Store.Driver,
		SQLitePath:    cfg.Store.SQLitePath,
		DatabaseURL:   cfg.Store.DatabaseURL,
		FSRoot:        cfg.Store.FSRoot,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer records.Close()
	if err := store.Seed(ctx, records); err != nil {
		log.Fatalf("Failed to seed record store: %v", err)
	}
	logger.Info("Record store ready", zap.String("driver", cfg.Store.Driver))

	markups, rates, err := loadRules(cfg.Markups.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load markup rules: %v", err)
	}

	docs, err := archive.Open(ctx, archive.Options{
		Driver:      cfg.Archive.Driver,
		FSRoot:      cfg.Archive.FSRoot,
		S3Bucket:    cfg.Archive.S3Bucket,
		S3Region:    cfg.Archive.S3Region,
		S3Endpoint:  cfg.Archive.S3Endpoint,
		S3PathStyle: cfg.Archive.S3PathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to open document archive: %v", err)
	}

	// Events go to Kafka when enabled, otherwise through an in-process bus
	var sink broker.EventSink
	var source worker.MessageSource
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTicket)
		defer producer.Close()
		sink = producer
		source = broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTicket, cfg.Kafka.ConsumerGroup)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		bus := broker.NewLocalBus(256)
		sink = bus
		source = bus
	}
	eventPublisher := broker.NewEventPublisher(sink)

	materials := store.NewCatalogStore(records, models.CatalogMaterials)
	equipment := store.NewCatalogStore(records, models.CatalogEquipment)
	tickets := store.NewTicketRepository(records)

	ticketService := service.NewTicketService(tickets, materials, equipment, markups, rates, eventPublisher)
	catalogService := service.NewCatalogService(materials, equipment, eventPublisher)

	policy := document.BoundaryExact
	if cfg.Document.LegacyBoundary {
		policy = document.BoundaryLegacy
	}
	orientation, err := document.ParseOrientation(cfg.Document.Orientation)
	if err != nil {
		log.Fatalf("Invalid DOCUMENT_ORIENTATION: %v", err)
	}
	exportService, err := service.NewExportService(tickets, docs, policy, orientation, cfg.Document.Scale)
	if err != nil {
		log.Fatalf("Failed to create export service: %v", err)
	}

	var remote service.RemoteChannel
	if cfg.Delivery.RemoteURL != "" {
		remote = service.NewHTTPRemote(cfg.Delivery.RemoteURL, nil)
	}
	dispatcher := service.NewDeliveryDispatcher(ctx, remote, service.MailtoComposer{})
	deliveryService := service.NewDeliveryService(tickets, exportService, dispatcher, docs, eventPublisher)

	var relay *mailer.Relay
	if cfg.SMTP.Host != "" {
		relay = mailer.NewRelay(mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			PreviewURL: cfg.SMTP.PreviewURL,
		}), cfg.SMTP.From)
		logger.Info("Mail relay enabled", zap.String("smtp_host", cfg.SMTP.Host))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	deliveryWorker := worker.NewDeliveryWorker(source, deliveryService.HandleDeliveryRequested)
	go func() {
		if err := deliveryWorker.Start(workerCtx); err != nil {
			logger.Error("Delivery worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Tickets:  ticketService,
		Catalogs: catalogService,
		Exporter: exportService,
		Delivery: deliveryService,
		Relay:    relay,
		Records:  records,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: api.Compress(router),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// The remote may be this process's own relay, which only answers once the server is up
	if remote != nil && !dispatcher.RemoteAvailable() {
		go func() {
			time.Sleep(time.Second)
			if dispatcher.Reprobe(context.Background()) {
				logger.Info("Email server available", zap.String("url", cfg.Delivery.RemoteURL))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := deliveryWorker.Stop(); err != nil {
		logger.Error("Error stopping delivery worker", zap.Error(err))
	}

	logger.Info("Server exited")
}

// loadRules builds the markup engine and labor rates, merging a rules file
// over the built-in defaults unless it asks to replace them
func loadRules(path string) (*service.MarkupEngine, service.LaborRates, error) {
	markupRules := service.DefaultMarkupRules()
	rates := service.DefaultLaborRates()

	if path != "" {
		file, err := config.LoadMarkupRules(path)
		if err != nil {
			return nil, service.LaborRates{}, err
		}

		if file.ReplaceDefaults {
			markupRules = file.MarkupRules()
			if len(file.LaborGrades) > 0 {
				rates.Grades = nil
			}
		} else {
			markupRules = append(markupRules, file.MarkupRules()...)
		}
		for _, g := range file.LaborGrades {
			rates.Grades = append(rates.Grades, service.LaborGrade{Name: g.Name, Rate: g.Rate.Decimal})
		}
		if file.DefaultGrade != "" {
			rates.Default = file.DefaultGrade
		}
	}

	if err := rates.Validate(); err != nil {
		return nil, service.LaborRates{}, err
	}
	engine, err := service.NewMarkupEngine(markupRules)
	if err != nil {
		return nil, service.LaborRates{}, err
	}
	return engine, rates, nil
}
