package internal

import (
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Config is the relay configuration, read from the environment.
type Config struct {
	Host                 string        `env:"HOST,default=localhost" validate:"required"`
	Port                 int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	TypingTTL            time.Duration `env:"TYPING_TTL,default=2s" validate:"gt=0"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024" validate:"min=1"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"min=1"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=100ms" validate:"gte=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s" validate:"gt=0"`
	MaxMessageLength     int           `env:"MAX_MESSAGE_LENGTH,default=2000" validate:"min=0"`
	ModerationEnabled    bool          `env:"MODERATION_ENABLED,default=false"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	_, err := c.CharacterRune()
	return err
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CharacterRune returns the single character replacing censored text.
func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT got %q", errors.ErrInvalidCharacter, c.CharReplacement)
	}
	return r[0], nil
}
