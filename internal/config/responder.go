package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ResponderTuning controls how complaint letters are generated. It is read
// from responder.yml and reloaded when the file changes.
type ResponderTuning struct {
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"maxTokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func DefaultResponderTuning() ResponderTuning {
	return ResponderTuning{
		Model:       "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
		MaxTokens:   1024,
		Temperature: 1.0,
		Timeout:     60 * time.Second,
	}
}

type ResponderConfigHolder struct {
	current atomic.Value // holds ResponderTuning
}

func NewResponderConfigHolder(log *zap.Logger) (*ResponderConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("responder.config")

	v := viper.New()

	v.SetConfigName("responder")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/grievance-portal")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GRIEVANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultResponderTuning()
	v.SetDefault("responder.model", defaults.Model)
	v.SetDefault("responder.maxTokens", defaults.MaxTokens)
	v.SetDefault("responder.temperature", defaults.Temperature)
	v.SetDefault("responder.timeout", defaults.Timeout)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ResponderTuning
	if err := v.UnmarshalKey("responder", &cfg); err != nil {
		return nil, err
	}
	if err := validateResponderTuning(cfg); err != nil {
		return nil, err
	}

	holder := &ResponderConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated ResponderTuning
			if err := v.UnmarshalKey("responder", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateResponderTuning(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticResponderConfigHolder returns a holder that never reloads.
func NewStaticResponderConfigHolder(cfg ResponderTuning) *ResponderConfigHolder {
	holder := &ResponderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *ResponderConfigHolder) Get() ResponderTuning {
	if h == nil {
		return DefaultResponderTuning()
	}
	return h.current.Load().(ResponderTuning)
}

func validateResponderTuning(cfg ResponderTuning) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("responder.model cannot be empty")
	}
	if cfg.MaxTokens <= 0 {
		return errors.New("responder.maxTokens must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return errors.New("responder.temperature must be within [0, 1]")
	}
	if cfg.Timeout <= 0 {
		return errors.New("responder.timeout must be positive")
	}
	return nil
}
