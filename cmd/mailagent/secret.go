package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/model"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets stored in the system keyring",
	Long: `Store the mailbox password or the object storage secret key in the
system keyring so they can be left out of the config file.

KIND is "mailbox" (keyed by mailbox.username) or "storage" (keyed by
storage.access_key).`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set KIND",
	Short: "Prompt for a secret and store it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretSet,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete KIND",
	Short: "Remove a stored secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

// Keyring access, swapped out in tests.
var (
	setSecret    = credential.Set
	deleteSecret = credential.Delete
)

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}

// secretKey maps KIND to its keyring key for the loaded config.
func secretKey(cfg *model.AppConfig, kind string) (string, error) {
	switch kind {
	case "mailbox":
		if cfg.Mailbox.Username == "" {
			return "", fmt.Errorf("mailbox.username is required")
		}
		return credential.MailboxKey(cfg.Mailbox.Username), nil
	case "storage":
		if cfg.Storage.AccessKey == "" {
			return "", fmt.Errorf("storage.access_key is required")
		}
		return credential.StorageKey(cfg.Storage.AccessKey), nil
	default:
		return "", fmt.Errorf("unknown secret kind %q, want mailbox or storage", kind)
	}
}

func validateSecret(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("secret cannot be empty")
	}
	return nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// promptSecret asks for the secret stored under key. A terminal gets a
// masked input; piped input is read line by line.
func promptSecret(ctx context.Context, in io.Reader, out io.Writer, key string) (string, error) {
	var secret string
	interactive := isTerminal(in)

	input := huh.NewInput().
		Title("Secret for " + key).
		Value(&secret).
		Validate(validateSecret)
	if interactive {
		input = input.EchoMode(huh.EchoModePassword)
	}

	form := huh.NewForm(huh.NewGroup(input)).
		WithInput(in).
		WithOutput(out).
		WithAccessible(!interactive)
	if err := form.RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return secret, nil
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	key, err := secretKey(cfg, args[0])
	if err != nil {
		return err
	}

	secret, err := promptSecret(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr(), key)
	if err != nil {
		return err
	}
	if err := setSecret(key, secret); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", key)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	key, err := secretKey(cfg, args[0])
	if err != nil {
		return err
	}
	if err := deleteSecret(key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
	return nil
}
