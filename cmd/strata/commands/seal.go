// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/strata-config/strata/cmd/strata/cli"
	"github.com/strata-config/strata/lib/config"
	"github.com/strata-config/strata/lib/errkind"
	"github.com/strata-config/strata/lib/sealed"
)

func sealCommand() *cli.Command {
	return &cli.Command{
		Name:    "seal",
		Summary: "Manage sealing keys",
		Description: `Sealed paths are encrypted to age recipients before they enter the
object store, and decrypted during apply on machines holding an
identity. These commands generate identities and recover the
recipient key to record in configuration.`,
		Usage: "strata seal <subcommand> [flags]",
		Subcommands: []*cli.Command{
			sealKeygenCommand(),
			sealRecipientCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Generate an identity for this machine",
				Command:     "strata seal keygen",
			},
			{
				Description: "Recover the public key of an existing identity",
				Command:     "strata seal recipient -i ~/.keys/strata.txt",
			},
		},
	}
}

type sealKeygenParams struct {
	Out string `json:"out" flag:"out,o" desc:"where to write the identity file (default .strata/identity.txt)"`
}

func sealKeygenCommand() *cli.Command {
	var params sealKeygenParams

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a new sealing identity",
		Description: `Creates an age x25519 keypair, writes the private identity to a
0600 file, and prints the public recipient key. The identity file
never belongs in version control.`,
		Usage: "strata seal keygen [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			out := params.Out
			if out == "" {
				out = filepath.Join(env.root, stateDirName, "identity.txt")
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			if err := sealed.WriteIdentityFile(out, keypair, env.clk.Now()); err != nil {
				return err
			}

			fmt.Printf("Wrote identity to %s\n", out)
			fmt.Printf("Public key: %s\n", keypair.Recipient)
			fmt.Printf("Add it under sealed.recipients in %s to seal content to this key.\n", config.Filename)
			return nil
		},
	}
}

type sealRecipientParams struct {
	Identity string `json:"identity" flag:"identity,i" desc:"identity file to derive the recipient from (default sealed.identity_file)"`
}

func sealRecipientCommand() *cli.Command {
	var params sealRecipientParams

	return &cli.Command{
		Name:    "recipient",
		Summary: "Print the public key of an identity",
		Description: `Derives the age recipient key from a private identity file. Use it
when the public half was never recorded, or to verify which key a
machine unseals with.`,
		Usage: "strata seal recipient [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("recipient", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			env, err := openEnv()
			if err != nil {
				return err
			}
			identityPath := params.Identity
			if identityPath == "" {
				identityPath = env.cfg.Sealed.IdentityFile
			}
			if identityPath == "" {
				return errkind.Configf(
					"no identity file: pass --identity or set sealed.identity_file in %s",
					config.Filename)
			}

			identity, err := sealed.LoadIdentity(identityPath)
			if err != nil {
				return err
			}
			defer identity.Close()

			recipient, err := sealed.RecipientOf(identity)
			if err != nil {
				return err
			}
			fmt.Println(recipient)
			return nil
		},
	}
}
