package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alkime/podbook/internal/keyring"
)

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey    SetKeyCmd    `cmd:"" help:"Store an API key in system keychain"`
	DeleteKey DeleteKeyCmd `cmd:"" name:"delete-key" help:"Remove an API key from system keychain"`
	ListKeys  ListKeysCmd  `cmd:"" name:"list-keys" help:"Show which API keys are configured and where from"`
}

type SetKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic,podbook" help:"Service name (openai, anthropic or podbook)"`
	Secret  string `arg:"" help:"API key value"`
}

func (c *SetKeyCmd) Run() error {
	key, err := keyring.Lookup(c.Service)
	if err != nil {
		return err
	}
	if err := key.Set(c.Secret); err != nil {
		return err
	}

	fmt.Printf("%s API key stored in keychain\n", key.Name)
	if key.Source() == "env" {
		fmt.Printf("note: %s is set and takes precedence\n", key.Env)
	}

	return nil
}

type DeleteKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic,podbook" help:"Service name (openai, anthropic or podbook)"`
}

func (c *DeleteKeyCmd) Run() error {
	key, err := keyring.Lookup(c.Service)
	if err != nil {
		return err
	}
	if err := key.Delete(); err != nil {
		return err
	}

	fmt.Printf("%s API key removed from keychain\n", key.Name)

	return nil
}

type ListKeysCmd struct{}

//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	listKeys(os.Stdout)
	return nil
}

func listKeys(w io.Writer) {
	missing := false

	for _, key := range keyring.Keys() {
		switch key.Source() {
		case "env":
			fmt.Fprintf(w, "%s: configured (%s)\n", key.Name, key.Env)
		case "keychain":
			fmt.Fprintf(w, "%s: configured (keychain)\n", key.Name)
		default:
			fmt.Fprintf(w, "%s: not set\n", key.Name)
			missing = true
		}
	}

	if missing {
		fmt.Fprintln(w, "\nRun 'podbook config set-key <service> <key>' to configure.")
	}
}
