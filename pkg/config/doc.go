// Package config provides configuration loading and validation for Warden.
//
// Configuration is read from a YAML file, filled in with defaults, and then
// overridden by WARDEN_* environment variables. The final configuration is
// validated before use so that an invalid file fails at startup rather than
// at first request.
//
// Example:
//
//	cfg, err := config.LoadConfig("warden.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
