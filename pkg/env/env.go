package env

import "os"

// Get returns the value of the given environment variable or a fallback.
// Used by the logger, which comes up before the envconfig-backed Config.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
