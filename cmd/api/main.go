package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ljoukov/voice-thinker/internal/api"
	"github.com/ljoukov/voice-thinker/internal/assistant"
	"github.com/ljoukov/voice-thinker/internal/config"
	"github.com/ljoukov/voice-thinker/internal/db"
	"github.com/ljoukov/voice-thinker/internal/services"
	"github.com/ljoukov/voice-thinker/internal/session"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Println("Starting voice-thinker API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize providers
	openaiClient := services.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)

	var stt services.Transcriber
	switch cfg.STTProvider {
	case config.ProviderOpenAI:
		stt = services.NewWhisperTranscriber(openaiClient)
		log.Println("STT provider: OpenAI Whisper")
	default:
		stt = services.NewFireworksTranscriber(cfg.FireworksKey, cfg.FireworksTranscribeURL)
		log.Println("STT provider: Fireworks (whisper-v3)")
	}

	var chat services.ChatModel
	switch cfg.ChatProvider {
	case config.ProviderGemini:
		gemini, err := services.NewGeminiChat(ctx, cfg.GeminiKey, cfg.ChatModel)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini: %v", err)
		}
		chat = gemini
		log.Println("Chat provider: Gemini")
	default:
		chat = services.NewOpenAIChat(openaiClient, cfg.ChatModel)
		log.Println("Chat provider: OpenAI")
	}

	var tts services.TTSService
	switch cfg.TTSProvider {
	case config.ProviderElevenLabs:
		tts = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		log.Println("TTS provider: ElevenLabs")
	default:
		tts = services.NewOpenAITTS(openaiClient)
		log.Println("TTS provider: OpenAI")
	}

	// Persona: file override or the built-in one, re-rendered per turn for the date
	systemPrompt := func() string {
		return assistant.BuildSystemPrompt(assistant.DefaultPersona(assistant.PersonaData{
			UserName: cfg.UserName,
			Location: cfg.UserLocation,
			Today:    time.Now(),
		}))
	}
	if cfg.SystemPromptPath != "" {
		persona, err := assistant.LoadPersona(cfg.SystemPromptPath)
		if err != nil {
			log.Fatalf("Failed to load persona: %v", err)
		}
		prompt := assistant.BuildSystemPrompt(persona)
		systemPrompt = func() string { return prompt }
		log.Printf("Loaded persona from %s", cfg.SystemPromptPath)
	}

	// Session store
	var store session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionIdleTTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = redisStore
		log.Println("Sessions stored in Redis")
	} else {
		store = session.NewMemoryStore()
		log.Println("Sessions stored in memory")
	}
	defer store.Close()

	// Optional turn archive
	var (
		archive  api.TurnArchive
		recorder assistant.TurnRecorder
		archiver session.Archiver
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		archive, recorder, archiver = database, database, database
		log.Println("Connected to database, turn archive enabled")
	}

	manager := session.NewManager(store, session.Options{
		MaxMessages: cfg.SessionMaxMessages,
		IdleTTL:     cfg.SessionIdleTTL,
		Archiver:    archiver,
	})

	asst := assistant.New(assistant.Config{
		Transcriber:       stt,
		Chat:              chat,
		TTS:               tts,
		SystemPrompt:      systemPrompt,
		SongURL:           cfg.SongURL,
		TranscribeTimeout: cfg.TranscribeTimeout,
		ChatTimeout:       cfg.ChatTimeout,
		SpeechTimeout:     cfg.SpeechTimeout,
		Recorder:          recorder,
	})

	handler := api.NewHandler(asst, manager, archive)
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return session.NewSweeper(manager, cfg.SessionSweepInterval).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server exited")
}
