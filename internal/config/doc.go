// Package config handles configuration loading for tutorchat.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TUTORCHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tutorchat/config.yaml
//  3. ~/.config/tutorchat/config.yaml
//
// A missing file is not an error; Default() values are used. Files with a
// .toml extension are decoded as TOML, anything else as YAML.
//
// # Environment Variables
//
// Values can reference environment variables with ${VAR_NAME}. After the
// file is decoded these overrides are applied:
//
//	TUTORCHAT_API_URL      api.base_url
//	TUTORCHAT_CHANNEL_URL  channel.url
//	TUTORCHAT_TOKEN        bootstrap bearer credential
//	TUTORCHAT_LOG_LEVEL    logging.level
//
// # Example
//
//	api:
//	  base_url: "https://tutor.example.com/api"
//	  timeout: "15s"
//	channel:
//	  url: "wss://tutor.example.com/ws"
//	  ping_interval: "25s"
//	  handshake_timeout: "10s"
//	  reconnect:
//	    enabled: true
//	    initial_interval: "500ms"
//	    max_interval: "30s"
//	    max_attempts: 8
//	credential:
//	  backend: "sqlite"   # file, sqlite
//	  path: "~/.config/tutorchat/storage.db"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
