// Command leadagent runs the WhatsApp lead-qualification service: the
// Cloud API webhook, the agent hand-off endpoint, and the conversation
// pipeline behind them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/danielmdadu/leadagent/config"
	"github.com/danielmdadu/leadagent/crm"
	"github.com/danielmdadu/leadagent/dialogue"
	"github.com/danielmdadu/leadagent/events"
	"github.com/danielmdadu/leadagent/extract"
	"github.com/danielmdadu/leadagent/guard"
	"github.com/danielmdadu/leadagent/llm"
	"github.com/danielmdadu/leadagent/session"
	"github.com/danielmdadu/leadagent/store"
	"github.com/danielmdadu/leadagent/whatsapp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.NewLoadedConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		ByAzure: cfg.OpenAIByAzure,
	})
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}

	llmOpts := []llm.Option{llm.WithTimeout(cfg.LLMTimeout)}
	extractor, err := extract.NewEngine(chatModel, log, llmOpts...)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	composer, err := dialogue.NewComposer(chatModel, log, llmOpts...)
	if err != nil {
		return fmt.Errorf("init composer: %w", err)
	}
	inventory, err := dialogue.NewInventoryClassifier(chatModel, log, llmOpts...)
	if err != nil {
		return fmt.Errorf("init inventory classifier: %w", err)
	}
	gate, err := guard.NewContentGate(chatModel, log, llmOpts...)
	if err != nil {
		return fmt.Errorf("init content gate: %w", err)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	var syncer crm.Syncer = crm.Noop{}
	if cfg.HubSpotAccessToken != "" || cfg.HubSpotRefreshToken != "" {
		syncer = crm.NewHubSpot(crm.HubSpotConfig{
			AccessToken:  cfg.HubSpotAccessToken,
			RefreshToken: cfg.HubSpotRefreshToken,
			ClientID:     cfg.HubSpotClientID,
			ClientSecret: cfg.HubSpotClientSecret,
		}, log)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		publisher, err = events.NewRabbit(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
	}
	defer publisher.Close()

	manager := session.NewManager(session.Deps{
		Store:        st,
		Extractor:    extractor,
		Responder:    composer,
		Inventory:    inventory,
		Gate:         gate,
		CRM:          syncer,
		Events:       publisher,
		Allowed:      cfg.Allowed(),
		AgentTimeout: cfg.AgentTimeout,
		Log:          log,
	})

	sender := whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken:   cfg.WhatsAppAccessToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		APIVersion:    cfg.WhatsAppAPIVersion,
	}, log)

	router := newRouter(cfg, manager, sender, log)
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("leadagent listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.DatabasePath == "" {
		log.Warn("no database path, conversations held in memory only")
		return store.NewMemory(), nil
	}
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewGorm(db, log)
}

func newRouter(cfg *config.Config, manager *session.Manager, sender whatsapp.Sender, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Cloud API subscription handshake.
	router.GET("/webhook", func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		if mode == "subscribe" && token == cfg.WhatsAppVerifyToken {
			c.String(http.StatusOK, c.Query("hub.challenge"))
			return
		}
		c.String(http.StatusForbidden, "verification failed")
	})

	router.POST("/webhook", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		in, err := whatsapp.ParseWebhook(body)
		if err != nil {
			c.String(http.StatusNotFound, "not a whatsapp event")
			return
		}
		if in == nil {
			// Delivery receipt or read status.
			c.String(http.StatusOK, "OK")
			return
		}

		var reply string
		if in.Type == "text" {
			reply = manager.HandleMessage(c.Request.Context(), in.WAID, in.Text, in.MessageID)
		} else {
			reply = manager.HandleMultimedia(c.Request.Context(), in.WAID, in.MessageID, in.Type)
		}
		if reply != "" {
			if _, err := sender.Send(c.Request.Context(), in.WAID, reply); err != nil {
				log.Error("send reply failed", "wa_id", in.WAID, "error", err)
			}
		}
		c.String(http.StatusOK, "OK")
	})

	router.POST("/agent-message", func(c *gin.Context) {
		var req struct {
			WAID    string `json:"wa_id" binding:"required"`
			AgentID string `json:"agent_id"`
			Message string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := manager.HandleAgentMessage(c.Request.Context(), req.WAID, req.AgentID, req.Message); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record agent message"})
			return
		}
		if _, err := sender.Send(c.Request.Context(), req.WAID, req.Message); err != nil {
			log.Error("send agent message failed", "wa_id", req.WAID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "message recorded but not delivered"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	})

	return router
}
