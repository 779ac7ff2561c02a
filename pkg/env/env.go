// Package env holds tiny environment helpers used before config is loaded.
package env

import "os"

// Get returns the named environment variable, falling back when it is
// unset or empty.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
