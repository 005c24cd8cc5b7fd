package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"ark-go/internal/archive"
	"ark-go/internal/config"
	"ark-go/internal/keystone"
	"ark-go/internal/storage"
)

// ArkApp is the application layer between the CLI and the archive
// facade. It wires the identity client, storage opener, prompts and
// logging from config and authenticates once on construction.
type ArkApp struct {
	cfg     *config.Config
	arch    *archive.Archive
	logger  archive.Logger
	logFile *os.File
}

// NewArkApp creates a fully wired ArkApp and authenticates the user.
// operation identifies the CLI command being run (e.g. "ListProjects");
// it tags every log line of this invocation. username overrides the
// configured one; a non-empty token skips the password flow. The caller
// must call Close when done.
func NewArkApp(ctx context.Context, cfg *config.Config, operation, username, token string) (*ArkApp, error) {
	if username == "" {
		username = cfg.Username
	}
	if username == "" {
		return nil, fmt.Errorf("no username: pass --username or set one in the config")
	}

	opID := operation + "-" + uuid.New().String()[:8]
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	identity := keystone.New(cfg.AuthURL, cfg.IdentityProvider, cfg.IdentityProviderURL, logger)
	arch, err := archive.New(ctx, username, archive.Options{
		Identity:    identity,
		OpenStorage: storage.OpenSwift,
		Token:       token,
		PasswordEnv: cfg.PasswordEnv,
		Prompter:    TermPrompter{},
		Confirmer:   TermConfirmer{},
		Logger:      logger,
	})
	if err != nil {
		logFile.Close()
		return nil, err
	}

	return &ArkApp{cfg: cfg, arch: arch, logger: logger, logFile: logFile}, nil
}

// Archive exposes the authenticated facade.
func (a *ArkApp) Archive() *archive.Archive { return a.arch }

// Close releases the log file.
func (a *ArkApp) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
