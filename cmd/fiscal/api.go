// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/setefiscal/setefiscal/lib/apiclient"
)

const (
	envServer = "FISCAL_SERVER"
	envAPIKey = "FISCAL_API_KEY"

	// defaultServer matches fiscald's default listen address.
	defaultServer = "http://127.0.0.1:8478"
)

// apiFlags are the connection flags shared by every command that talks
// to a fiscald instance.
type apiFlags struct {
	server string
	apiKey string
}

func (f *apiFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.server, "server", "",
		"fiscald base URL (default $"+envServer+", then "+defaultServer+")")
	flags.StringVar(&f.apiKey, "api-key", "",
		"owner API key (default $"+envAPIKey+", then an interactive prompt)")
}

func (f *apiFlags) serverURL() string {
	if f.server != "" {
		return f.server
	}
	if env := os.Getenv(envServer); env != "" {
		return env
	}
	return defaultServer
}

// resolveKey returns the owner API key without prompting, or "" when
// neither the flag nor the environment provides one.
func (f *apiFlags) resolveKey() string {
	if f.apiKey != "" {
		return f.apiKey
	}
	return os.Getenv(envAPIKey)
}

// ownerClient returns a client authenticated with the owner API key,
// prompting on the terminal as a last resort.
func (f *apiFlags) ownerClient() (*apiclient.Client, error) {
	key := f.resolveKey()
	if key == "" {
		var err error
		key, err = promptSecret("API key: ")
		if err != nil {
			return nil, fmt.Errorf("an owner API key is required (--api-key or $%s): %w", envAPIKey, err)
		}
	}
	if key == "" {
		return nil, errors.New("an owner API key is required (--api-key or $" + envAPIKey + ")")
	}
	return apiclient.New(f.serverURL(), apiclient.WithAPIKey(key)), nil
}

// anonClient returns an unauthenticated client for the token-bearing
// client surface.
func (f *apiFlags) anonClient() *apiclient.Client {
	return apiclient.New(f.serverURL())
}

// promptSecret reads a line from the terminal with echo disabled.
func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for interactive prompt")
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
