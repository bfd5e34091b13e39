package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agenda/internal/agent"
	"agenda/internal/bus"
	"agenda/internal/config"
	"agenda/internal/dialog"
	"agenda/internal/nlu"
	"agenda/internal/store"
)

const reconnect = 3 * time.Second

func main() {
	cfg, err := config.Load(config.Flags("agenda"), os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	config.SetupLogging(os.Stdout, cfg.Log)

	log.Info("Starting agenda shard", "name", cfg.BusName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Options{Dir: cfg.DataDir, Quota: cfg.TaskQuota})
	if err != nil {
		log.Error("Failed to open store", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	var classifier dialog.Classifier
	if c, err := nlu.New(cfg.OpenAIKey, cfg.Proxy, cfg.Model); err != nil {
		log.Warn("Classifier disabled", "err", err)
	} else {
		classifier = c
	}

	ag := agent.New(agent.Options{
		Store:      st,
		Classifier: classifier,
		Dialog: dialog.Options{
			Quota:       cfg.TaskQuota,
			EscapeWords: cfg.EscapeWords,
		},
	})

	b, err := bus.Dial(ctx, cfg.BusURL, reconnect)
	if err != nil {
		log.Error("Failed to connect to bus", "err", err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()

	shard := bus.NewShard(cfg.BusName, b, func(ctx context.Context, sp dialog.Speaker, ls dialog.Listener) error {
		return ag.Router(sp, ls).Serve(ctx)
	}, bus.DefaultIdle)

	for {
		err := shard.Serve(ctx, b)
		if ctx.Err() != nil {
			break
		}
		if bus.IsClosed(err) {
			log.Warn("Bus closed the connection", "err", err)
		} else {
			log.Error("Failed to read bus", "err", err)
		}
		if err := b.Redial(ctx); err != nil {
			break
		}
	}

	shard.Wait()
	log.Info("Shard stopped")
}
