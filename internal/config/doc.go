// Package config loads, validates, and normalizes the daemon's TOML
// configuration.
//
// Load resolves the config path (flag value, VIDPIPE_CONFIG, then the
// default location), decodes it over compiled-in defaults, expands ~ in
// every path field, and validates the result. A commented sample file is
// embedded for `vidpipe config init`.
package config
