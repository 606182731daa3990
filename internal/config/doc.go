// Package config loads storyteller's TOML configuration.
//
// Load applies defaults, the STORYTELLER_API_URL and STORYTELLER_API_TOKEN
// environment overrides, path expansion and validation, so callers only ever
// see a usable Config.
package config
