// Package config handles configuration loading for taskboard.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. The file extension picks the decoder: ".toml" is TOML, anything
// else is YAML.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TASKBOARD_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/taskboard/config.yaml
//  3. ~/.config/taskboard/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TASKBOARD_JWT_SECRET}"
//	assistant:
//	  api_key: "${OPENAI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Validation
//
// [Config.Validate] requires a listen address (unless Tailscale is enabled),
// a supported database driver and DSN, and a JWT secret of at least 32 bytes
// when one is set. A missing assistant API key is not an error; the chat proxy
// reports it per request instead.
package config
