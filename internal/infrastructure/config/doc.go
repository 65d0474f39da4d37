// Package config loads and validates Device Core configuration.
//
// Configuration comes from a YAML file with three layers of precedence:
// built-in defaults, file values, then DEVICECORE_* environment variables
// for deployment-sensitive settings (database path, broker credentials,
// JWT secret).
//
// Validation collects every problem into a single error so operators fix
// a broken config in one pass instead of one restart per mistake.
package config
