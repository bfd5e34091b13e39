package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"sync"

	"agenda/internal/calendar"
	"agenda/internal/dialog"
	"agenda/internal/ipc"
	"agenda/internal/store"
	"agenda/internal/voice"
	"agenda/pkg/audioconv"
)

var ErrBusy = errors.New("microphone busy")

// NoteTranscriber turns a recorded voice note into text.
type NoteTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

type Options struct {
	Store      *store.Store
	Speaker    dialog.Speaker
	Listener   dialog.Listener
	Classifier dialog.Classifier
	Notes      NoteTranscriber
	Dialog     dialog.Options
}

// Agent runs conversations against one store: on the speaker and microphone,
// or over a text connection. Only one conversation holds the microphone.
type Agent struct {
	store      *store.Store
	speaker    dialog.Speaker
	listener   dialog.Listener
	classifier dialog.Classifier
	notes      NoteTranscriber
	dialog     dialog.Options

	mic sync.Mutex
}

func New(opts Options) *Agent {
	return &Agent{
		store:      opts.Store,
		speaker:    opts.Speaker,
		listener:   opts.Listener,
		classifier: opts.Classifier,
		notes:      opts.Notes,
		dialog:     opts.Dialog,
	}
}

// Router starts a conversation on sp and ls.
func (a *Agent) Router(sp dialog.Speaker, ls dialog.Listener) *dialog.Router {
	return dialog.NewRouter(dialog.NewEngine(sp, ls, a.store, a.store, a.dialog), a.classifier)
}

func (a *Agent) voice() (*dialog.Router, func(), error) {
	if a.speaker == nil || a.listener == nil {
		return nil, nil, errors.New("no voice configured")
	}
	if !a.mic.TryLock() {
		return nil, nil, ErrBusy
	}
	return a.Router(a.speaker, a.listener), a.mic.Unlock, nil
}

// Trigger listens for one spoken command and runs it.
func (a *Agent) Trigger(ctx context.Context) error {
	router, release, err := a.voice()
	if err != nil {
		return err
	}
	defer release()

	return router.ServeOne(ctx)
}

// Loop keeps a spoken conversation going until ctx is done. The escape word
// only ends the current round.
func (a *Agent) Loop(ctx context.Context) error {
	router, release, err := a.voice()
	if err != nil {
		return err
	}
	defer release()

	for {
		err := router.Serve(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && !errors.Is(err, dialog.ErrStorage):
			return err
		}
	}
}

// Note transcribes the voice note at path and runs it as a spoken command.
func (a *Agent) Note(ctx context.Context, path string) (string, error) {
	if a.notes == nil {
		return "", errors.New("voice notes are not configured")
	}
	text, err := a.notes.TranscribeFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	log.Info("Voice note", "path", path, "text", text)

	router, release, err := a.voice()
	if err != nil {
		return text, err
	}
	defer release()

	return text, router.HandleCommand(ctx, text)
}

func (a *Agent) Handle(ctx context.Context, msg ipc.ControlMessage) ipc.Response {
	switch msg.Cmd {
	case ipc.CmdTrigger:
		if err := a.Trigger(ctx); err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{}

	case ipc.CmdNote:
		text, err := a.Note(ctx, msg.Path)
		if err != nil {
			return ipc.Response{Error: err.Error(), Text: text}
		}
		return ipc.Response{Text: text}

	case ipc.CmdTasks:
		date, ok := calendar.ParseDate(string(msg.Date))
		if !ok {
			return ipc.Failure(fmt.Errorf("%w: %q", store.ErrInvalidDate, msg.Date))
		}
		tasks, err := a.store.ListTasks(ctx, date)
		if err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{Tasks: tasks}

	case ipc.CmdDates:
		dates, err := a.store.TaskDates(ctx)
		if err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{Dates: dates}

	case ipc.CmdToday:
		today, err := a.store.TodayTasks(ctx)
		if err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{Today: today}

	case ipc.CmdAlarms:
		alarms, err := a.store.ListAlarms(ctx)
		if err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{Alarms: alarms}

	case ipc.CmdRollover:
		if err := a.store.Rollover(ctx); err != nil {
			return ipc.Failure(err)
		}
		today, err := a.store.TodayTasks(ctx)
		if err != nil {
			return ipc.Failure(err)
		}
		return ipc.Response{Today: today}
	}

	log.Warn("Unknown command", "cmd", msg.Cmd)
	return ipc.Failure(fmt.Errorf("unknown command %q", msg.Cmd))
}

// Chat runs a text conversation until the escape word or the end of r.
func (a *Agent) Chat(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := voice.NewStream(ctx, cancel, r, w)
	err := a.Router(s, s).Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Files decodes voice notes with audioconv and transcribes them.
type Files struct {
	STT        voice.Transcriber
	MaxSamples int
}

func (f Files) TranscribeFile(ctx context.Context, path string) (string, error) {
	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{MaxSamples: f.MaxSamples})
	if err != nil {
		return "", err
	}
	text, err := f.STT.Transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}
	return voice.Clean(text), nil
}
