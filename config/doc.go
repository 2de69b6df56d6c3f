// Package config provides configuration loading and validation for deaddrop.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (DEADDROP_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with DEADDROP_ prefix:
//   - server.port → DEADDROP_SERVER_PORT
//   - metadata.type → DEADDROP_METADATA_TYPE
//   - storage.path → DEADDROP_STORAGE_PATH
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size
//   - Service: cleanup_timeout for compensating deletes
//   - Metadata: backend type, connection URL, and namespace
//   - Storage: blob directory and per-operation timeout
//   - Retry: attempts and base delay for transient metadata failures
//   - Reaper: background deletion queue size and delete attempts
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level and format
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Metadata type must be redis, sqlite, postgres, or memory
//   - Log level must be debug, info, warn, or error
package config
