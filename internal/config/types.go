package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" or "1h" decode.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config represents the complete answerline configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Line   LineConfig   `yaml:"line"`
	Answer AnswerConfig `yaml:"answer"`
	State  StateConfig  `yaml:"state"`
}

// ServerConfig defines the inbound webhook listener settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// CallbackPath is the URL path the chat platform delivers webhooks to.
	CallbackPath string `yaml:"callback_path"`

	// SignatureHeader is the HTTP header carrying the request signature.
	SignatureHeader string `yaml:"signature_header"`

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	LogLevel string `yaml:"log_level"`
}

// LineConfig defines the chat platform credentials and reply behavior.
type LineConfig struct {
	// ChannelSecret signs inbound webhook bodies (HMAC-SHA256).
	ChannelSecret string `yaml:"channel_secret"`

	// ChannelToken authorizes outbound reply delivery.
	ChannelToken string `yaml:"channel_token"`

	// BotUserID is the bot's own user id; only mentions of this id
	// make a group message eligible for a reply.
	BotUserID string `yaml:"bot_user_id"`

	// DirectChatReply is a free-form flag; see Truthy for the accepted
	// enabled values. Anything else (including unset) disables
	// unsolicited replies in one-to-one chats.
	DirectChatReply string `yaml:"direct_chat_reply"`

	APIBase string `yaml:"api_base"`

	// MaxReplyLength caps a single outbound text message, in characters.
	MaxReplyLength int `yaml:"max_reply_length"`

	Timeout Duration `yaml:"timeout"`
}

// AnswerConfig defines the LLM answer backend settings.
type AnswerConfig struct {
	APIKey          string   `yaml:"api_key"`
	APIBase         string   `yaml:"api_base"`
	Model           string   `yaml:"model"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	SystemPrompt    string   `yaml:"system_prompt,omitempty"`
	Timeout         Duration `yaml:"timeout"`

	// VectorStoreID points the backend at a restricted document set.
	// When set, answers are grounded with the file_search tool instead
	// of a plain chat completion.
	VectorStoreID string `yaml:"vector_store_id,omitempty"`
}

// StateConfig defines the processed-event store used for redelivery dedup.
// An empty Path disables the store; redelivered events are then
// processed again.
type StateConfig struct {
	Path      string   `yaml:"path,omitempty"`
	DedupeTTL Duration `yaml:"dedupe_ttl"`
}

// DirectChatAllowed reports whether the bot replies to one-to-one
// messages without an explicit mention.
func (c LineConfig) DirectChatAllowed() bool {
	return Truthy(c.DirectChatReply)
}

// Truthy normalizes a free-form flag value. The enabled set is exactly
// {"true", "1", "yes", "on"} after trimming and lower-casing; anything
// else means disabled, so malformed configuration never enables
// unsolicited replies.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          "127.0.0.1:8080",
			CallbackPath:    "/callback",
			SignatureHeader: "X-Line-Signature",
			MaxBodySize:     1048576, // 1 MB
			LogLevel:        "info",
		},
		Line: LineConfig{
			APIBase:        "https://api.line.me",
			MaxReplyLength: 2000,
			Timeout:        Duration(30 * time.Second),
		},
		Answer: AnswerConfig{
			APIBase:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 1024,
			Timeout:         Duration(30 * time.Second),
		},
		State: StateConfig{
			DedupeTTL: Duration(24 * time.Hour),
		},
	}
}
