package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"github.com/subosito/gotenv"
)

const keyringService = "slotwatch"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Existing variables win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// keyringGet is swapped in tests.
var keyringGet = func(key string) (string, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/slotwatch/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("slotwatch-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return "", fmt.Errorf("opening keyring: %w", err)
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// ResolveSecret expands a secret reference:
//
//	env:NAME     value of the environment variable (must be set)
//	keyring:KEY  item from the system keyring
//	anything else is returned as-is
func ResolveSecret(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "env:"):
		name := strings.TrimPrefix(ref, "env:")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(ref, "keyring:"):
		return keyringGet(strings.TrimPrefix(ref, "keyring:"))
	default:
		return ref, nil
	}
}

// ResolveSecrets returns a copy of the notifier section with every secret
// field expanded. Empty fields stay empty.
func ResolveSecrets(n NotifierConfig) (NotifierConfig, error) {
	out := n
	out.Email.To = append([]string(nil), n.Email.To...)
	fields := []struct {
		path string
		dst  *string
	}{
		{"notifier.email.password", &out.Email.Password},
		{"notifier.sms.auth_token", &out.SMS.AuthToken},
		{"notifier.telegram.token", &out.Telegram.Token},
	}
	for _, f := range fields {
		if *f.dst == "" {
			continue
		}
		v, err := ResolveSecret(*f.dst)
		if err != nil {
			return NotifierConfig{}, fmt.Errorf("%s: %w", f.path, err)
		}
		*f.dst = v
	}
	return out, nil
}
