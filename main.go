package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-scdl-bot/bot"
	"go-scdl-bot/cache"
	"go-scdl-bot/config"
	"go-scdl-bot/downloader"
)

func main() {
	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Additional validation
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// Configuration loaded successfully
	fmt.Printf("Bot configuration loaded successfully:\n")
	fmt.Printf("- API ID: %d\n", cfg.APIID)
	fmt.Printf("- API Hash: %s\n", maskString(cfg.APIHash))
	fmt.Printf("- Bot Token: %s\n", maskString(cfg.Token))
	fmt.Printf("- Log Level: %s\n", cfg.LogLevel)
	fmt.Printf("- Extractor: %s\n", cfg.Extractor)
	fmt.Printf("- Allowed domains: %v\n", cfg.AllowedDomains)

	logger := log.New(os.Stdout, "[scdl-bot] ", log.LstdFlags|log.Lmsgprefix)

	telegramBot, err := bot.NewTelegramBot(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create bot: %v", err)
	}

	// The Telegram client must be up before the download pipeline can be
	// wired, since sender and membership checks talk to the live API.
	if err := telegramBot.Start(); err != nil {
		telegramBot.GetErrorHandler().HandleConfigError(err)
	}

	uploadCache, err := cache.Open(cfg.CacheFile)
	if err != nil {
		logger.Fatalf("Failed to open upload cache %s: %v", cfg.CacheFile, err)
	}
	defer uploadCache.Close()

	trackDownloader := buildDownloader(cfg, logger)
	logger.Printf("Using %s extractor", trackDownloader.Name())

	api := telegramBot.GetClient().API()
	sender := bot.NewAudioSender(api, logger, cfg.MaxFileBytes())
	membership := bot.NewMembershipChecker(api, logger, cfg.RequiredChannel)

	trackHandler := bot.NewTrackHandler(telegramBot, logger, cfg, trackDownloader, sender, uploadCache, membership)

	telegramBot.RegisterCommandHandler(bot.NewStartHandler(telegramBot, logger))
	telegramBot.RegisterCommandHandler(bot.NewHelpHandler(telegramBot, logger))
	telegramBot.RegisterCommandHandler(bot.NewPingHandler(telegramBot, logger))
	telegramBot.RegisterCommandHandler(bot.NewCheckHandler(telegramBot, logger, membership))
	telegramBot.RegisterCommandHandler(trackHandler)
	telegramBot.RegisterCommandHandler(bot.NewQueueHandler(telegramBot, logger, trackHandler))
	telegramBot.RegisterTextHandler(trackHandler)

	logger.Printf("Bot is up, waiting for requests")

	// Block until interrupted
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Printf("Received %v, shutting down", sig)

	if err := telegramBot.Stop(); err != nil {
		logger.Printf("ERROR: Shutdown failed: %v", err)
	}
}

// buildDownloader picks the configured extractor implementation.
func buildDownloader(cfg *config.BotConfig, logger *log.Logger) downloader.TrackDownloader {
	switch cfg.Extractor {
	case config.ExtractorSoundCloud:
		client := downloader.NewSoundCloudClient(cfg.SoundCloudClient)
		return downloader.NewSoundCloudDownloader(client, logger)
	default:
		return downloader.NewYtdlpDownloader(logger)
	}
}

// maskString masks sensitive information for logging
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
