// Package config provides configuration structures and utilities for
// mapharvest. It defines browser settings, pagination and extraction
// timings, field selectors, export preferences and the optional YAML
// configuration file.
package config
