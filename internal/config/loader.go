package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses configuration from a file, applies environment
// overrides for secrets, verifies integrity checksums if present, and
// validates the result. The returned Config is never mutated after load.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	applyEnvOverrides(cfg)

	// Hash-verify the config file when a .checksums manifest exists.
	if err := VerifyConfigFile(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file. Environment always wins so deployments never need secrets
// on disk.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LINE_CHANNEL_SECRET"); v != "" {
		cfg.Line.ChannelSecret = v
	}
	if v := os.Getenv("LINE_CHANNEL_TOKEN"); v != "" {
		cfg.Line.ChannelToken = v
	}
	if v := os.Getenv("LINE_BOT_USER_ID"); v != "" {
		cfg.Line.BotUserID = v
	}
	if v := os.Getenv("BOT_DIRECT_CHAT_REPLY"); v != "" {
		cfg.Line.DirectChatReply = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Answer.APIKey = v
	}
}

// validate checks the loaded configuration for missing or nonsensical values.
func validate(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if cfg.Server.CallbackPath == "" || cfg.Server.CallbackPath[0] != '/' {
		return fmt.Errorf("server.callback_path must start with '/', got %q", cfg.Server.CallbackPath)
	}
	if cfg.Server.SignatureHeader == "" {
		return fmt.Errorf("server.signature_header must not be empty")
	}
	if cfg.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive, got %d", cfg.Server.MaxBodySize)
	}
	if cfg.Line.ChannelSecret == "" {
		return fmt.Errorf("line.channel_secret is required (or set LINE_CHANNEL_SECRET)")
	}
	if cfg.Line.ChannelToken == "" {
		return fmt.Errorf("line.channel_token is required (or set LINE_CHANNEL_TOKEN)")
	}
	if cfg.Line.MaxReplyLength <= 0 {
		return fmt.Errorf("line.max_reply_length must be positive, got %d", cfg.Line.MaxReplyLength)
	}
	if cfg.Line.Timeout <= 0 {
		return fmt.Errorf("line.timeout must be positive, got %s", cfg.Line.Timeout)
	}
	if cfg.Answer.APIKey == "" {
		return fmt.Errorf("answer.api_key is required (or set OPENAI_API_KEY)")
	}
	if cfg.Answer.Model == "" {
		return fmt.Errorf("answer.model must not be empty")
	}
	if cfg.Answer.MaxOutputTokens <= 0 {
		return fmt.Errorf("answer.max_output_tokens must be positive, got %d", cfg.Answer.MaxOutputTokens)
	}
	if cfg.Answer.Timeout <= 0 {
		return fmt.Errorf("answer.timeout must be positive, got %s", cfg.Answer.Timeout)
	}
	if cfg.State.Path != "" && cfg.State.DedupeTTL <= 0 {
		return fmt.Errorf("state.dedupe_ttl must be positive when state.path is set")
	}
	return nil
}
