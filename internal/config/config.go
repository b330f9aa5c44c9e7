// Package config loads client and relay settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/omochice/relay-chat/pkg/protocol"
)

var validate = validator.New()

// Client holds the chat client settings.
type Client struct {
	RelayURL    string        `env:"CHAT_RELAY_URL,default=ws://localhost:8080/ws" validate:"required,url"`
	Name        string        `env:"CHAT_NAME"`
	Codec       string        `env:"CHAT_CODEC,default=line" validate:"oneof=line envelope"`
	JoinTimeout time.Duration `env:"CHAT_JOIN_TIMEOUT,default=10s" validate:"min=0"`
	SendQueue   int           `env:"CHAT_SEND_QUEUE,default=16" validate:"min=1,max=4096"`
	LogLevel    string        `env:"LOG_LEVEL,default=WARN" validate:"oneof=DEBUG INFO WARN ERROR"`
	NoColor     bool          `env:"NO_COLOR"`
}

// Relay holds the development relay settings.
type Relay struct {
	Host      string  `env:"RELAY_HOST,default=localhost"`
	Port      int     `env:"RELAY_PORT,default=8080" validate:"min=0,max=65535"`
	Codec     string  `env:"CHAT_CODEC,default=line" validate:"oneof=line envelope"`
	SendQueue int     `env:"RELAY_SEND_QUEUE,default=64" validate:"min=1,max=65536"`
	RateLimit float64 `env:"RELAY_RATE_LIMIT,default=20" validate:"min=0"`
	Burst     int     `env:"RELAY_BURST,default=40" validate:"min=1"`
	LogLevel  string  `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Address returns the listen address.
func (r Relay) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoadClient reads Client from the environment and validates it.
func LoadClient() (Client, error) {
	var c Client
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return Client{}, fmt.Errorf("config error: %w", err)
	}
	return c, c.Validate()
}

// LoadRelay reads Relay from the environment and validates it.
func LoadRelay() (Relay, error) {
	var r Relay
	if _, err := env.UnmarshalFromEnviron(&r); err != nil {
		return Relay{}, fmt.Errorf("config error: %w", err)
	}
	return r, r.Validate()
}

// Validate checks field constraints. Flags may change a loaded config, so
// callers validate again after applying them.
func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

func (r Relay) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid relay config: %w", err)
	}
	return nil
}

// NewCodec returns the codec named by the Codec field.
func (c Client) NewCodec() (protocol.Codec, error) {
	return protocol.ByName(c.Codec, protocol.Decoder{})
}

func (r Relay) NewCodec() (protocol.Codec, error) {
	return protocol.ByName(r.Codec, protocol.Decoder{})
}
