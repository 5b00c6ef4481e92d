package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/nhle/mailagent/internal/attachment"
	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

// mailboxCredentials builds IMAP credentials, loading the password from
// the keyring when the config leaves it empty.
func mailboxCredentials(cfg model.MailboxConfig, resolve SecretResolver) (mailbox.Credentials, error) {
	secret, err := resolve(cfg.Secret, credential.MailboxKey(cfg.Username))
	if err != nil {
		return mailbox.Credentials{}, fmt.Errorf(
			"mailbox secret for %s not in config or keyring: %w", cfg.Username, err)
	}

	return mailbox.Credentials{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Secret:   secret,
		Security: mailbox.ParseSecurity(cfg.Security),
		Folder:   cfg.Folder,
	}, nil
}

// buildSink creates the configured storage backend and returns it with
// its metrics label.
func buildSink(cfg model.StorageConfig, fs afero.Fs, resolve SecretResolver) (attachment.Sink, string, error) {
	switch cfg.Backend {
	case model.BackendObject:
		secretKey, err := resolve(cfg.SecretKey, credential.StorageKey(cfg.AccessKey))
		if err != nil {
			return nil, "", fmt.Errorf(
				"storage secret key for %s not in config or keyring: %w", cfg.AccessKey, err)
		}
		sink, err := attachment.NewObjectSink(attachment.ObjectConfig{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Namespace: cfg.Namespace,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: secretKey,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, "", err
		}
		return sink, model.BackendObject, nil

	default:
		sink, err := attachment.NewFilesystemSink(fs, filepath.Clean(cfg.Root), cfg.Namespace, cfg.Bucket)
		if err != nil {
			return nil, "", err
		}
		return sink, model.BackendFilesystem, nil
	}
}
