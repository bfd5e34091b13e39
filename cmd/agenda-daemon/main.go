package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	"agenda/internal/agent"
	"agenda/internal/audio"
	"agenda/internal/config"
	"agenda/internal/dialog"
	"agenda/internal/ipc"
	"agenda/internal/nlu"
	"agenda/internal/notify"
	"agenda/internal/scheduler"
	"agenda/internal/store"
	"agenda/internal/tts"
	"agenda/internal/voice"
	"agenda/pkg/stt"
)

const (
	initialPrompt = "Agenda por voz: añadir tarea, eliminar tarea, ver tareas, tareas de hoy, poner alarma, salir."
	maxNoteLength = 120 // seconds
)

func main() {
	cfg, err := config.Load(config.Flags("agenda-daemon"), os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	config.SetupLogging(os.Stdout, cfg.Log)

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Options{Dir: cfg.DataDir, Quota: cfg.TaskQuota})
	if err != nil {
		log.Error("Failed to open store", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	log.Debug("Loaded store", "dir", st.Dir())

	events, err := st.Watch(ctx)
	if err != nil {
		log.Warn("Failed to watch data dir, external edits need a restart", "err", err)
	} else {
		go func() {
			for ev := range events {
				log.Info("Data changed on disk", "kind", ev.Kind, "date", ev.Date)
			}
		}()
	}

	var classifier dialog.Classifier
	if c, err := nlu.New(cfg.OpenAIKey, cfg.Proxy, cfg.Model); err != nil {
		log.Warn("Classifier disabled", "err", err)
	} else {
		classifier = c
		log.Debug("Loaded classifier", "proxy", cfg.Proxy)
	}

	player := notify.NewPlayer()
	alarm := notify.NewAlarm(player, audio.NewMixer(), cfg.AlarmSound, cfg.AlarmVolume)

	opts := []scheduler.Option{
		scheduler.WithInterval(cfg.PollInterval),
		scheduler.WithAlertTimeout(cfg.AlertTimeout),
	}
	if cfg.Rollover {
		opts = append(opts, scheduler.WithRollover(st))
	}
	sched := scheduler.New(st, alarm, opts...)

	rec := audio.NewRecorder(audio.RecorderConfig{Wait: cfg.ListenTimeout})
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()

	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
		Language:      cfg.Language,
		InitialPrompt: initialPrompt,
	})
	if err != nil {
		log.Error("Failed to init whisper", "model", cfg.WhisperModel, "err", err)
		os.Exit(1)
	}
	defer whisper.Close()

	log.Debug("Loaded whisper")

	ag := agent.New(agent.Options{
		Store:      st,
		Speaker:    tts.NewEspeak(cfg.Voice, 0),
		Listener:   voice.NewMic(rec, whisper, notify.NewCue(player, cfg.CueSound), cfg.ListenTimeout),
		Classifier: classifier,
		Notes:      agent.Files{STT: whisper, MaxSamples: stt.SampleRate * maxNoteLength},
		Dialog: dialog.Options{
			Quota:       cfg.TaskQuota,
			EscapeWords: cfg.EscapeWords,
		},
	})

	srv, err := ipc.Listen(cfg.Socket)
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Scheduler stopped", "err", err)
		}
	}()

	if cfg.Loop {
		go func() {
			if err := ag.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Listening loop stopped", "err", err)
			}
		}()
	}

	if err := srv.Serve(ctx, ag); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Control socket stopped", "err", err)
	}

	log.Info("Shutting down")
}
