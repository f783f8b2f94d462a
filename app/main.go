package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wrenhollow/chronicle/internal/authorservice"
	"github.com/wrenhollow/chronicle/internal/common"
	"github.com/wrenhollow/chronicle/internal/mailservice"
	"github.com/wrenhollow/chronicle/internal/postservice"
)

type application struct {
	config        *Config
	logger        *slog.Logger
	authorService *authorservice.AuthorService
	postService   *postservice.PostService
	mailService   *mailservice.MailService
	broker        *common.MessageBroker
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, 10, 5, 15*time.Minute)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	err = common.SetupMailExchange(broker)
	if err != nil {
		logger.Error("failed to setup the mail exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := common.NewCache(5*time.Minute, 10*time.Minute)

	app := &application{
		config:        cfg,
		logger:        logger,
		authorService: authorservice.NewAuthorService(db, broker, cache),
		postService:   postservice.NewPostService(db, cache, broker, cfg.BaseURL),
		broker:        broker,
		mailService:   mailservice.NewMailService(broker, cfg.Mail.Host, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.Sender, cfg.Mail.Port, logger),
	}

	// Start the mail consumers.
	app.mailService.SendActivationEmail()
	app.mailService.SendShareEmail()
	defer app.mailService.Close()

	err = app.serve(cfg.Port)
	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
