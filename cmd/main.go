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

	"whatsapp-channel/config"
	"whatsapp-channel/internal/events"
	"whatsapp-channel/internal/gateway"
	"whatsapp-channel/internal/handlers"
	"whatsapp-channel/internal/repositories"
	"whatsapp-channel/internal/services"
	"whatsapp-channel/internal/utils"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title WhatsApp Channel API
// @version 1.0
// @description CRM WhatsApp channel service: session lifecycle, gateway webhook ingestion and message sending
// @host localhost:8081
// @BasePath /api/v1
func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	db, err := config.ConnectDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	sessionRepo := repositories.NewMySQLSessionRepository(db)
	contactRepo := repositories.NewMySQLContactRepository(db)
	conversationRepo := repositories.NewMySQLConversationRepository(db)
	messageRepo := repositories.NewMySQLMessageRepository(db)
	leadRepo := repositories.NewMySQLPreOpportunityRepository(db)

	gatewayClient := gateway.NewClient(cfg.Gateway)

	s3Service, err := services.NewS3Service(&cfg.S3Config)
	if err != nil {
		utils.LogError("Erro ao criar serviço S3, mídia será mantida na URL do gateway: %v", err)
	}
	var blob services.BlobUploader
	if s3Service != nil {
		blob = s3Service
	}

	// Publicador de eventos é opcional: sem AMQP_URL o serviço roda sem
	// barramento
	var publisher events.Publisher
	if cfg.AMQP.URL != "" {
		publisher, err = events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			utils.LogError("Erro ao conectar no broker, eventos desabilitados: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	leadService := services.NewLeadService(leadRepo, publisher)
	sessionService := services.NewSessionService(
		sessionRepo, contactRepo, conversationRepo, messageRepo,
		gatewayClient, cfg.Gateway.WebhookEndpoint)
	webhookService := services.NewWebhookService(
		sessionRepo, contactRepo, conversationRepo, messageRepo,
		leadService, gatewayClient, blob, publisher)

	sessionHandler := handlers.NewSessionHandler(sessionService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	router := mux.NewRouter().PathPrefix("/api/v1").Subrouter()

	// Webhook do gateway
	router.HandleFunc("/webhook", webhookHandler.HandleWebhook).Methods("POST", "OPTIONS")

	// Ciclo de vida da sessão
	router.HandleFunc("/sessions/start", sessionHandler.HandleStart).Methods("POST", "OPTIONS")
	router.HandleFunc("/sessions/qrcode", sessionHandler.HandleQRCode).Methods("GET", "OPTIONS")
	router.HandleFunc("/sessions/status", sessionHandler.HandleStatus).Methods("GET", "OPTIONS")
	router.HandleFunc("/sessions/disconnect", sessionHandler.HandleDisconnect).Methods("POST", "OPTIONS")

	// Envio
	router.HandleFunc("/send-text", sessionHandler.HandleSendText).Methods("POST", "OPTIONS")
	router.HandleFunc("/send-media", sessionHandler.HandleSendMedia).Methods("POST", "OPTIONS")
	router.HandleFunc("/send-contact", sessionHandler.HandleSendContact).Methods("POST", "OPTIONS")
	router.HandleFunc("/send-poll", sessionHandler.HandleSendPoll).Methods("POST", "OPTIONS")

	// Rota WebSocket
	router.HandleFunc("/ws", handlers.WebSocketHandler)

	// Serve os arquivos estáticos do Swagger
	fs := http.FileServer(http.Dir("./docs"))
	router.PathPrefix("/swagger/").Handler(http.StripPrefix("/api/v1/swagger/", fs))

	// Configuração do Swagger UI
	router.PathPrefix("/swagger-ui/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8081/api/v1/swagger/swagger.json"),
		httpSwagger.DeepLinking(true),
	))

	mainRouter := mux.NewRouter()
	mainRouter.PathPrefix("/api/v1").Handler(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	handler := c.Handler(mainRouter)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("Server is running on %s\n", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-stop
	fmt.Println("\nShutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	fmt.Println("Server stopped successfully")
}
