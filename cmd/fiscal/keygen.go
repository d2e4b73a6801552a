// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/setefiscal/setefiscal/cmd/fiscal/cli"
)

func keygenCommand() *cli.Command {
	var ownerID, ownerName string
	var cost int
	var fromPrompt bool
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an owner API key and its config hash",
		Usage:   "fiscal keygen [flags]",
		Description: "Keygen generates a random owner API key and prints it together with\n" +
			"the bcrypt hash that goes into the fiscald config. Only the hash is\n" +
			"ever written down server-side; lose the key and you run keygen again.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flags.StringVar(&ownerID, "id", "owner", "owner ID for the config snippet")
			flags.StringVar(&ownerName, "name", "", "owner display name for the config snippet")
			flags.IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
			flags.BoolVar(&fromPrompt, "prompt", false, "hash a key you already have instead of generating one")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Generate a key for a new owner",
				Command:     "fiscal keygen --id maria --name \"Maria Contábil\"",
			},
		},
		Run: func(args []string) error {
			var key string
			if fromPrompt {
				var err error
				key, err = promptSecret("API key to hash: ")
				if err != nil {
					return err
				}
				if key == "" {
					return fmt.Errorf("empty key")
				}
			} else {
				key = generateAPIKey()
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
			if err != nil {
				return fmt.Errorf("hashing key: %w", err)
			}

			if !fromPrompt {
				renderSecret(os.Stdout, key, "")
				fmt.Println()
			}
			fmt.Println("Add to the fiscald config:")
			fmt.Println()
			fmt.Println("  owners:")
			fmt.Printf("    - id: %s\n", ownerID)
			if ownerName != "" {
				fmt.Printf("      name: %q\n", ownerName)
			}
			fmt.Printf("      api_key_hash: %q\n", hash)
			return nil
		},
	}
}

// generateAPIKey returns 256 bits of entropy as hex: 64 characters,
// safely under bcrypt's 72-byte input limit.
func generateAPIKey() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("fiscal: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b[:])
}
