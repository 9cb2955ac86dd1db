package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_TYPING_TTL is short so expiry can be observed over real sockets
	TypingTTL time.Duration `envconfig:"E2E_TYPING_TTL" default:"300ms"`
	// E2E_READ_TIMEOUT bounds every wait for a frame
	ReadTimeout time.Duration `envconfig:"E2E_READ_TIMEOUT" default:"3s"`
	// E2E_DEBUG_JSON dumps every received frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
