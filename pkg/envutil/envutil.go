// Package envutil provides shared helpers for environment variable parsing.
package envutil

import (
	"os"
	"strings"
)

// Get returns the env var value or fallback when unset/empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// GetBool parses common bool strings (true/1/yes/on) and uses fallback when unset.
func GetBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return fallback
}
