package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/sjawhar/voice-tutor/internal/call"
	"github.com/sjawhar/voice-tutor/internal/config"
	"github.com/sjawhar/voice-tutor/internal/gdrive"
	"github.com/sjawhar/voice-tutor/internal/server"
	"github.com/sjawhar/voice-tutor/internal/storage"
	"github.com/sjawhar/voice-tutor/internal/tutor"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	_ = godotenv.Load()

	app := kingpin.New("voice-tutor", "Nigerian tax tutor with live voice calls.")
	configPath := app.Flag("config", "Path to the YAML config file.").
		Default("config.yaml").
		Envar(config.EnvPrefix + "CONFIG").
		String()

	serveCmd := app.Command("serve", "Run the web UI and API.").Default()
	callCmd := app.Command("call", "Hold a voice call with the tutor in this terminal.")
	callTopic := callCmd.Flag("topic", "Tax topic for the call.").String()
	chatCmd := app.Command("chat", "Chat with the tutor in this terminal.")
	chatTopic := chatCmd.Flag("topic", "Tax topic for the chat.").String()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case serveCmd.FullCommand():
		err = runServe(ctx, cfg, warnings)
	case callCmd.FullCommand():
		err = runCall(ctx, cfg, *callTopic)
	case chatCmd.FullCommand():
		err = runChat(ctx, cfg, *chatTopic)
	}
	if err != nil {
		log.Fatalf("voice-tutor: %v", err)
	}
}

func runServe(ctx context.Context, cfg config.Config, warnings []string) error {
	log.Println("voice-tutor: starting")

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}

	hub := server.NewHub()
	factory := clientFactory(cfg)
	router := tutor.NewTopicRouter(cfg.Model, factory, cfg.Topics, cfg.DefaultTopic)

	svc := server.Services{
		Store:        store,
		Tutor:        tutor.New(cfg.Model, factory),
		Quiz:         tutor.NewQuizGenerator(cfg.Model, factory, store),
		Analyzer:     tutor.NewAnalyzer(cfg.Model, factory, router),
		Topics:       cfg.Topics,
		DefaultTopic: cfg.DefaultTopic,
		Warnings:     func() []string { return warnings },
	}

	var manager *call.Manager
	voice, err := newVoiceStack(cfg, factory, hub)
	if err != nil {
		log.Printf("warning: voice calls disabled, running chat/UI only: %v", err)
	} else {
		manager = call.NewManager(store, voice.CallConfig(cfg), voice.Deps)
		svc.Calls = manager
	}

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive backup disabled: %v", syncErr)
		} else {
			go syncer.Run(ctx, store, gdrive.DefaultInterval)
		}
	}

	serveErr := server.Serve(ctx, cfg.ListenAddr, assets, hub, svc)

	log.Println("voice-tutor: shutting down")
	if manager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// The mic stays open if the recognizer never acknowledged its stop.
		if err := manager.Shutdown(shutdownCtx); err != nil {
			log.Printf("warning: end call failed, leaving audio device open: %v", err)
		} else {
			voice.Close()
		}
	}
	return serveErr
}

func runCall(ctx context.Context, cfg config.Config, topic string) error {
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	voice, err := newVoiceStack(cfg, clientFactory(cfg), newConsoleEvents(os.Stdout))
	if err != nil {
		return err
	}
	manager := call.NewManager(store, voice.CallConfig(cfg), voice.Deps)
	sess, err := manager.StartCall(topic)
	if err != nil {
		voice.Close()
		return err
	}
	log.Printf("call %s on %s started; press Ctrl+C to hang up", sess.ID(), sess.Topic())

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		return err
	}
	voice.Close()
	return nil
}
