package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	cli "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir       string
	AlarmSound    string
	CueSound      string
	AlarmVolume   int
	PollInterval  time.Duration
	AlertTimeout  time.Duration
	EscapeWords   []string
	TaskQuota     int
	Rollover      bool
	Voice         string
	Language      string
	WhisperModel  string
	ListenTimeout time.Duration
	Proxy         string
	Socket        string
	BusURL        string
	BusName       string
	OpenAIKey     string
	Model         string
	Log           string
	Loop          bool
}

var defaults = map[string]interface{}{
	"data_dir":       "~/.agenda",
	"alarm_sound":    "~/.agenda/alarm.mp3",
	"cue_sound":      "",
	"alarm_volume":   100,
	"poll_interval":  time.Second,
	"alert_timeout":  2 * time.Minute,
	"escape_word":    []string{"salir", "cancelar"},
	"task_quota":     9,
	"rollover":       true,
	"voice":          "es",
	"language":       "es",
	"whisper_model":  "~/.agenda/models/ggml-small.bin",
	"listen_timeout": 10 * time.Second,
	"proxy":          "",
	"socket":         "/tmp/agenda.sock",
	"bus_url":        "ws://localhost:8092/ws",
	"bus_name":       "agenda",
	"openai_api_key": "",
	"model":          "",
	"log":            "info",
	"loop":           false,
}

// Flags declares the command line of a binary. Flag names are the config keys
// with dashes: --data-dir sets data_dir.
func Flags(name string) *cli.FlagSet {
	fs := cli.NewFlagSet(name, cli.ContinueOnError)
	fs.StringP("env", "e", ".env", "Env file path")
	fs.StringP("data-dir", "d", "", "Directory holding tasks and alarms")
	fs.String("alarm-sound", "", "Mp3 played when an alarm goes off")
	fs.String("cue-sound", "", "Mp3 played before listening")
	fs.Int("alarm-volume", 0, "Sink volume in percent while an alarm sounds")
	fs.Duration("poll-interval", 0, "How often alarms are checked")
	fs.Duration("alert-timeout", 0, "Longest time an alarm sound may play")
	fs.StringSlice("escape-word", nil, "Words that cancel the current dialog")
	fs.Int("task-quota", 0, "Maximum tasks per date")
	fs.Bool("rollover", true, "Roll today's tasks over every day")
	fs.String("voice", "", "espeak voice")
	fs.String("language", "", "Transcription language")
	fs.String("whisper-model", "", "Whisper model path")
	fs.Duration("listen-timeout", 0, "How long to wait for speech")
	fs.StringP("proxy", "p", "", "Socks Proxy Address for the classifier")
	fs.StringP("socket", "s", "", "Control socket path")
	fs.StringP("bus-url", "u", "", "Url of hub")
	fs.String("bus-name", "", "Name of this shard on the bus")
	fs.String("model", "", "Classifier chat model")
	fs.StringP("log", "l", "", "Log level")
	fs.Bool("loop", false, "Keep listening for commands")
	return fs
}

// Load parses args into fs and resolves every key from flags, AGENDA_*
// environment, .env, the .agenda config file and defaults, in that order.
func Load(fs *cli.FlagSet, args []string) (Config, error) {
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if env, err := fs.GetString("env"); err == nil && env != "" {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", env, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(".agenda") // .yaml is implicit
	v.SetEnvPrefix("AGENDA")
	v.AutomaticEnv()
	if err := v.BindEnv("openai_api_key", "OPENAI_API_KEY"); err != nil {
		return Config{}, err
	}

	if override := os.Getenv("AGENDA_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var bindErr error
	fs.VisitAll(func(f *cli.Flag) {
		if f.Name == "env" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return Config{}, bindErr
	}

	cfg := Config{
		DataDir:       v.GetString("data_dir"),
		AlarmSound:    v.GetString("alarm_sound"),
		CueSound:      v.GetString("cue_sound"),
		AlarmVolume:   v.GetInt("alarm_volume"),
		PollInterval:  v.GetDuration("poll_interval"),
		AlertTimeout:  v.GetDuration("alert_timeout"),
		EscapeWords:   v.GetStringSlice("escape_word"),
		TaskQuota:     v.GetInt("task_quota"),
		Rollover:      v.GetBool("rollover"),
		Voice:         v.GetString("voice"),
		Language:      v.GetString("language"),
		WhisperModel:  v.GetString("whisper_model"),
		ListenTimeout: v.GetDuration("listen_timeout"),
		Proxy:         v.GetString("proxy"),
		Socket:        v.GetString("socket"),
		BusURL:        v.GetString("bus_url"),
		BusName:       v.GetString("bus_name"),
		OpenAIKey:     v.GetString("openai_api_key"),
		Model:         v.GetString("model"),
		Log:           v.GetString("log"),
		Loop:          v.GetBool("loop"),
	}

	for _, p := range []*string{&cfg.DataDir, &cfg.AlarmSound, &cfg.CueSound, &cfg.WhisperModel, &cfg.Socket} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return Config{}, fmt.Errorf("expand %s: %w", *p, err)
		}
		*p = expanded
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.DataDir == "":
		return errors.New("data_dir is empty")
	case c.TaskQuota <= 0:
		return fmt.Errorf("task_quota must be positive, got %d", c.TaskQuota)
	case c.AlarmVolume < 0 || c.AlarmVolume > 150:
		return fmt.Errorf("alarm_volume must be within 0..150, got %d", c.AlarmVolume)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	case c.AlertTimeout <= 0:
		return fmt.Errorf("alert_timeout must be positive, got %s", c.AlertTimeout)
	}
	if _, ok := logLevelMap[c.Log]; !ok {
		return fmt.Errorf("unknown log level %q", c.Log)
	}
	return nil
}
