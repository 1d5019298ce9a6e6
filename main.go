package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/consultorio-rincon/voice-frontdesk/ai"
	"github.com/consultorio-rincon/voice-frontdesk/calendar"
	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/dialogue"
	"github.com/consultorio-rincon/voice-frontdesk/handlers"
	"github.com/consultorio-rincon/voice-frontdesk/logger"
	"github.com/consultorio-rincon/voice-frontdesk/server"
	"github.com/consultorio-rincon/voice-frontdesk/session"
	"github.com/consultorio-rincon/voice-frontdesk/telnyx"
	"github.com/consultorio-rincon/voice-frontdesk/texml"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	menu, err := config.LoadMenu("")
	if err != nil {
		fmt.Printf("Error loading menu config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	store := session.NewStore(time.Duration(cfg.StoreTTLMinutes)*time.Minute, logger.Component(log, "session"))
	store.StartJanitor(ctx, time.Minute)

	var responder dialogue.Responder
	if cfg.OpenAIAPIKey != "" {
		responder = ai.NewOpenAIResponder(
			cfg.OpenAIAPIKey,
			cfg.AIModel,
			cfg.AIBaseURL,
			time.Duration(cfg.AITimeoutSeconds)*time.Second,
			menu.Office,
			logger.Component(log, "ai"),
		)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, speech replies use fallback lines only")
	}

	var control handlers.CallControl
	if cfg.TelnyxAPIKey != "" {
		control = telnyx.NewClient(telnyx.Config{
			APIKey:   cfg.TelnyxAPIKey,
			BaseURL:  cfg.TelnyxBaseURL,
			Voice:    cfg.Voice,
			Language: cfg.Language,
		}, logger.Component(log, "telnyx"))
	} else {
		log.Warn().Msg("TELNYX_API_KEY not set, out-of-band call control disabled")
	}

	book := calendar.NewBook(logger.Component(log, "calendar"))
	policy := dialogue.NewPolicy(menu, responder, cfg.GatherTimeoutSeconds, logger.Component(log, "dialogue"))

	composer := texml.NewComposer(
		texml.Voice{Name: cfg.Voice, Language: cfg.Language},
		cfg.CallbackURL,
		menu.TimeoutWarning,
		menu.HandoffLine,
	)

	pipe := handlers.NewPipeline(cfg, menu, store, policy, book, control, composer, logger.Component(log, "webhook"))

	srv := server.New(cfg, pipe, book, logger.Component(log, "http"))
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
