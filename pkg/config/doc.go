// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development.
//
// Each package owning configuration declares its own Config struct with
// `env` and `envDefault` tags; callers load them at startup:
//
//	var cfg session.Config
//	config.MustLoad(&cfg)
package config
