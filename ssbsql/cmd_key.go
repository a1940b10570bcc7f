package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ssbsql/internal/cli/output"
	"ssbsql/internal/codec"
	"ssbsql/internal/identity"
	"ssbsql/internal/privatebox"
	"ssbsql/internal/value"
)

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the local identity",
	}

	var force bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a new secret file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			if _, err := os.Stat(a.cfg.SecretPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", a.cfg.SecretPath)
			}
			id, err := identity.Generate()
			if err != nil {
				return err
			}
			if err := identity.Save(a.cfg.SecretPath, id); err != nil {
				return fmt.Errorf("save secret: %w", err)
			}
			return output.Fields(cmd.OutOrStdout(),
				map[string]any{"id": id.ID, "path": a.cfg.SecretPath},
				[]string{"id", "path"}, "id", format)
		},
	}
	generate.Flags().BoolVar(&force, "force", false, "overwrite an existing secret file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the local feed id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := a.outputFormat()
			if err != nil {
				return err
			}
			id, err := a.loadIdentity()
			if err != nil {
				return err
			}
			if id == nil {
				return fmt.Errorf("no secret at %s (run: ssbsql key generate)", a.cfg.SecretPath)
			}
			return output.Fields(cmd.OutOrStdout(),
				map[string]any{"id": id.ID, "path": a.cfg.SecretPath},
				[]string{"id", "path"}, "id", format)
		},
	}

	cmd.AddCommand(generate, show)
	return cmd
}

func newSealCmd(a *app) *cobra.Command {
	var (
		to   []string
		self bool
	)
	cmd := &cobra.Command{
		Use:   "seal <content.json|->",
		Short: "Box a JSON content object for up to seven recipients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			content, err := codec.DecodeJSONValue(bytes.TrimSpace(data))
			if err != nil {
				return fmt.Errorf("parse content: %w", err)
			}
			payload, ok := content.(value.Object)
			if !ok {
				return errors.New("content must be a JSON object")
			}

			recipients := make([]privatebox.PublicKey, 0, len(to)+1)
			if self {
				id, err := a.loadIdentity()
				if err != nil {
					return err
				}
				if id == nil {
					return fmt.Errorf("--self needs a secret at %s", a.cfg.SecretPath)
				}
				to = append(to, id.ID)
			}
			for _, feed := range to {
				pub, err := identity.ParseFeedID(feed)
				if err != nil {
					return err
				}
				pk, err := privatebox.PublicKeyFromEd25519(pub)
				if err != nil {
					return fmt.Errorf("recipient %s: %w", feed, err)
				}
				recipients = append(recipients, pk)
			}

			boxed, err := privatebox.SealContent(payload, recipients)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), boxed)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient feed id (repeatable)")
	cmd.Flags().BoolVar(&self, "self", false, "add the local identity as a recipient")
	return cmd
}

func newDecryptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <message|box|->",
		Short: "Open a private message with the local identity",
		Long: "Reads either a whole message in a log format or a bare boxed content " +
			"string and prints the decrypted content as JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			id, err := a.loadIdentity()
			if err != nil {
				return err
			}
			if id == nil {
				return fmt.Errorf("no secret at %s", a.cfg.SecretPath)
			}
			sk, err := id.BoxKey()
			if err != nil {
				return err
			}

			var content any = string(bytes.TrimSpace(data))
			if msg, err := codec.Decode(data, codec.ParseFormat(a.cfg.Format)); err == nil {
				content = msg.Value.Content
			}
			plain, ok := privatebox.TryDecrypt(content, []privatebox.SecretKey{sk})
			if !ok {
				return errors.New("not a private message for this identity")
			}
			out, err := codec.EncodeJSONValue(plain)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
