package dialog

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"unicode"

	"agenda/internal/calendar"
)

type Intent string

const (
	IntentAddTask    Intent = "add_task"
	IntentRemoveTask Intent = "remove_task"
	IntentListTasks  Intent = "list_tasks"
	IntentTodayTasks Intent = "today_tasks"
	IntentSetAlarm   Intent = "set_alarm"
	IntentHelp       Intent = "help"
	IntentUnknown    Intent = "unknown"
)

// Intents lists every intent a classifier may return.
var Intents = []Intent{
	IntentAddTask, IntentRemoveTask, IntentListTasks, IntentTodayTasks, IntentSetAlarm, IntentHelp, IntentUnknown,
}

// Classifier maps free text to an intent when no command phrase matches.
type Classifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

type phrase struct {
	words  string
	intent Intent
}

// Checked in order, so longer phrases come before the words they contain.
var phrases = []phrase{
	{"tareas de hoy", IntentTodayTasks},
	{"tareas para hoy", IntentTodayTasks},
	{"que tengo hoy", IntentTodayTasks},
	{"anadir tarea", IntentAddTask},
	{"agregar tarea", IntentAddTask},
	{"nueva tarea", IntentAddTask},
	{"crear tarea", IntentAddTask},
	{"eliminar tarea", IntentRemoveTask},
	{"borrar tarea", IntentRemoveTask},
	{"quitar tarea", IntentRemoveTask},
	{"ver tareas", IntentListTasks},
	{"listar tareas", IntentListTasks},
	{"leer tareas", IntentListTasks},
	{"mis tareas", IntentListTasks},
	{"poner alarma", IntentSetAlarm},
	{"programar alarma", IntentSetAlarm},
	{"nueva alarma", IntentSetAlarm},
	{"crear alarma", IntentSetAlarm},
	{"alarma", IntentSetAlarm},
	{"ayuda", IntentHelp},
}

// Router dispatches top-level phrases to dialog flows on one conversation.
type Router struct {
	engine     *Engine
	classifier Classifier
	flows      map[Intent]func() Flow
}

func NewRouter(engine *Engine, classifier Classifier) *Router {
	return &Router{
		engine:     engine,
		classifier: classifier,
		flows: map[Intent]func() Flow{
			IntentAddTask:    AddTask,
			IntentRemoveTask: RemoveTask,
			IntentListTasks:  ListTasks,
			IntentTodayTasks: TodayTasks,
			IntentSetAlarm:   SetAlarm,
			IntentHelp:       Help,
		},
	}
}

// Match finds the command phrase contained in text.
func Match(text string) (Intent, bool) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, calendar.Fold(text))
	folded := " " + strings.Join(strings.Fields(clean), " ") + " "
	for _, p := range phrases {
		if strings.Contains(folded, " "+p.words+" ") {
			return p.intent, true
		}
	}
	return IntentUnknown, false
}

func (r *Router) resolve(ctx context.Context, text string) Intent {
	if intent, ok := Match(text); ok {
		return intent
	}
	if r.classifier == nil {
		return IntentUnknown
	}

	intent, err := r.classifier.Classify(ctx, text)
	if err != nil {
		log.Warn("Failed to classify", "text", text, "err", err)
		return IntentUnknown
	}
	log.Debug("Classified", "text", text, "intent", intent)
	return intent
}

// HandleCommand runs the flow for phrase to completion. Only storage failures
// and cancellation are returned; everything else is spoken to the user.
func (r *Router) HandleCommand(ctx context.Context, phrase string) error {
	intent := r.resolve(ctx, phrase)
	newFlow, ok := r.flows[intent]
	if !ok {
		r.engine.say(ctx, msgUnknownCommand)
		return nil
	}

	log.Info("Handling command", "phrase", phrase, "intent", intent)
	_, err := r.engine.Run(ctx, newFlow())
	return err
}

// Serve keeps listening for top-level commands until the escape utterance
// is heard or ctx is done.
func (r *Router) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in, ok := r.engine.listen(ctx)
		if !ok {
			continue
		}
		if r.engine.IsEscape(in) {
			r.engine.say(ctx, msgGoodbye)
			return nil
		}

		if err := r.HandleCommand(ctx, in); err != nil && !errors.Is(err, ErrStorage) {
			return err
		}
	}
}

// ServeOne listens for a single top-level command and runs it.
func (r *Router) ServeOne(ctx context.Context) error {
	in, ok := r.engine.listen(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.engine.say(ctx, msgNotUnderstood)
		return nil
	}
	if r.engine.IsEscape(in) {
		r.engine.say(ctx, msgGoodbye)
		return nil
	}
	return r.HandleCommand(ctx, in)
}
