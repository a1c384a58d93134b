// Package config loads application settings from the environment and an
// optional config file using viper, and validates them with validator.
//
// Every key can be set through an environment variable with the DIGEST_
// prefix, where dots become underscores: server.port is DIGEST_SERVER_PORT.
package config
