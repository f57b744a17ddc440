// Package keyring stores backend API keys in the system keychain.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gokeyring "github.com/zalando/go-keyring"
)

const service = "podbook"

var ErrNotSet = errors.New("key not set")

// Key is one API credential. Name is what users type on the command line;
// a non-empty Env variable takes precedence over the keychain entry.
type Key struct {
	Name    string
	Env     string
	account string
}

var (
	OpenAI    = Key{Name: "openai", Env: "OPENAI_API_KEY", account: "openai-api-key"}
	Anthropic = Key{Name: "anthropic", Env: "ANTHROPIC_API_KEY", account: "anthropic-api-key"}
	Podbook   = Key{Name: "podbook", Env: "PODBOOK_API_KEY", account: "podbook-api-key"}
)

func Keys() []Key {
	return []Key{OpenAI, Anthropic, Podbook}
}

// Lookup finds a key by its command-line name.
func Lookup(name string) (Key, error) {
	for _, k := range Keys() {
		if k.Name == name {
			return k, nil
		}
	}

	return Key{}, fmt.Errorf("unknown service: %s", name)
}

func (k Key) Get() (string, error) {
	v, err := gokeyring.Get(service, k.account)
	switch {
	case errors.Is(err, gokeyring.ErrNotFound):
		return "", fmt.Errorf("%s: %w", k.Name, ErrNotSet)
	case err != nil:
		return "", fmt.Errorf("failed to read %s key from keychain: %w", k.Name, err)
	}

	return v, nil
}

func (k Key) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s key cannot be empty", k.Name)
	}

	if err := gokeyring.Set(service, k.account, value); err != nil {
		return fmt.Errorf("failed to store %s key in keychain: %w", k.Name, err)
	}

	return nil
}

func (k Key) Delete() error {
	err := gokeyring.Delete(service, k.account)
	switch {
	case errors.Is(err, gokeyring.ErrNotFound):
		return fmt.Errorf("%s: %w", k.Name, ErrNotSet)
	case err != nil:
		return fmt.Errorf("failed to delete %s key from keychain: %w", k.Name, err)
	}

	return nil
}

// Source says where the key's value currently comes from: "env",
// "keychain", or "" when it is not configured.
func (k Key) Source() string {
	if os.Getenv(k.Env) != "" {
		return "env"
	}
	if _, err := k.Get(); err == nil {
		return "keychain"
	}

	return ""
}
