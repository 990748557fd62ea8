// Package config exposes typed access to the service configuration.
package config
