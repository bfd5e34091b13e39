package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"agenda/internal/dialog"
	"agenda/internal/proxy"
)

type Result struct {
	Intent string `json:"intent"`
	Query  string `json:"query"`
}

const systemPrompt = `
You are the intent classifier of a Spanish voice agenda.
Your ONLY job is to map the user's utterance to one command of the agenda.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY JSON. No markdown.

OUTPUT FORMAT:
{
  "intent": "<string>",
  "query": "<original user text>"
}

INTENTS:
- "add_task"     = añadir, apuntar, anotar o recordar una tarea para una fecha
- "remove_task"  = borrar, eliminar o quitar una tarea
- "list_tasks"   = leer o consultar las tareas de una fecha
- "today_tasks"  = qué hay que hacer hoy
- "set_alarm"    = despertador, alarma, avisar a una hora
- "help"         = el usuario no sabe qué puede decir
- "unknown"      = cualquier otra cosa

Dates, times and task texts are asked later: never extract them.
If the meaning is unclear, intent = "unknown".
`

var ErrEmptyResponse = errors.New("empty completion")

type completeFunc func(ctx context.Context, system, user string) (string, error)

// Classifier asks a chat model for the command intent of free text.
type Classifier struct {
	complete completeFunc
}

// New builds a classifier talking to the OpenAI API, through the SOCKS5 proxy
// at proxyAddr when it is set.
func New(apiKey, proxyAddr, model string) (*Classifier, error) {
	if apiKey == "" {
		return nil, errors.New("empty api key")
	}

	httpClient, err := proxy.NewClient(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", proxyAddr, err)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	)
	return NewClassifier(client, openai.ChatModel(model)), nil
}

func NewClassifier(client openai.Client, model openai.ChatModel) *Classifier {
	if model == "" {
		model = openai.ChatModelGPT5Nano
	}

	return &Classifier{
		complete: func(ctx context.Context, system, user string) (string, error) {
			resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(system),
					openai.UserMessage(user),
				},
				Model: model,
			})
			if err != nil {
				return "", fmt.Errorf("chat completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no choices in response")
			}
			return resp.Choices[0].Message.Content, nil
		},
	}
}

func (c *Classifier) Classify(ctx context.Context, text string) (dialog.Intent, error) {
	content, err := c.complete(ctx, systemPrompt, text)
	if err != nil {
		return dialog.IntentUnknown, err
	}

	log.Debug("Processed", "data", content)

	res, err := parse(content)
	if err != nil {
		return dialog.IntentUnknown, err
	}
	return res, nil
}

func parse(content string) (dialog.Intent, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return dialog.IntentUnknown, ErrEmptyResponse
	}

	var out Result
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return dialog.IntentUnknown, fmt.Errorf("unmarshal NLU result: %w (raw: %s)", err, content)
	}

	intent := dialog.Intent(strings.ToLower(strings.TrimSpace(out.Intent)))
	for _, known := range dialog.Intents {
		if intent == known {
			return intent, nil
		}
	}
	log.Warn("Classifier returned unknown intent", "intent", out.Intent)
	return dialog.IntentUnknown, nil
}
