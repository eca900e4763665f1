package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret looks up a secret by env var name, honoring the
// container-friendly *_FILE indirection: when NAME_FILE is set, the
// secret is the trimmed contents of that file, and it wins over a
// plain NAME value. An unset secret resolves to the empty string;
// only an unreadable file is an error.
func ResolveSecret(name string) (string, error) {
	if path := os.Getenv(name + "_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("secret %s_FILE points at unreadable %s: %w", name, path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return os.Getenv(name), nil
}

// MustResolveSecret resolves a secret required at startup, exiting the
// process on error. The error never contains the secret value.
func MustResolveSecret(name string) string {
	v, err := ResolveSecret(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return v
}
