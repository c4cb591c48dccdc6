package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yury-yury/telegram-bot/api"
	"github.com/yury-yury/telegram-bot/bot"
	"github.com/yury-yury/telegram-bot/bot/state"
	"github.com/yury-yury/telegram-bot/core/bootstrap"
	"github.com/yury-yury/telegram-bot/core/config"
	"github.com/yury-yury/telegram-bot/core/logger"
	"github.com/yury-yury/telegram-bot/storage"
	"github.com/yury-yury/telegram-bot/telegram"
	"log/slog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "runbot:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	res, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer logger.Shutdown()
	defer res.DB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.New(res.DB)
	tg := telegram.NewClient(cfg.Telegram.Token)
	dispatcher := bot.NewDispatcher(tg, store, state.NewMemoryManager())
	poller := bot.NewPoller(tg, dispatcher,
		cfg.Telegram.LongPollTimeoutSeconds,
		time.Duration(cfg.Telegram.RetryDelaySeconds)*time.Second,
	)

	var wg sync.WaitGroup
	if cfg.API.Listen != "" {
		srv := api.NewServer(store, tg, cfg.API.Token)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.API.Listen); err != nil {
				logger.Error(ctx, "api", "server.failed", slog.String("err", err.Error()))
				stop()
			}
		}()
	}

	err = poller.Run(ctx)
	stop()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
