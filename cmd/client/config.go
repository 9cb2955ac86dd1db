package main

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=ws://localhost:8080/ws"`
	DisplayName   string `env:"CHAT_DISPLAY_NAME,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=WARN"`
	Colours       bool   `env:"CHAT_COLOURS,default=true"`
}
