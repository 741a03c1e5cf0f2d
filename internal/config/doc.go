// Package config handles configuration loading for sigil-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SIGIL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/sigil/gateway.yaml
//  3. ~/.config/sigil/gateway.yaml
//
// When no file exists the gateway runs on Default(). Files ending in .toml
// are read as TOML; anything else is YAML. Both use the same keys.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${SIGIL_JWT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":8080"
//
//	database:
//	  driver: "sqlite"          # memory (default), sqlite
//	  path: "/var/lib/sigil/principals.db"
//
//	scheme:
//	  name: "dilithium2"        # dilithium2, dilithium3, toy
//	  toy:                      # only read for name: toy; NOT SECURE
//	    q: 7681
//	    n: 4
//	    matrix: [[...], ...]    # optional, random when omitted
//	    low: -2
//	    high: 2
//	    digest: "additive"      # additive, sha3
//
//	challenge:
//	  ttl: "5m"
//
//	auth:
//	  jwt_secret: "${SIGIL_JWT_SECRET}"  # empty disables session tokens
//	  token_ttl: "1h"
//	  revocation_size: 100000
//
//	rate_limit:
//	  rps: 1                    # per principal; 0 disables
//	  burst: 5
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax.
package config
