package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/config"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/store"
)

var sessionFlag string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatflowctl",
	Short: "Command-line client for the ChatFlow messaging backend",
	Long: `chatflowctl performs one-shot operations against a ChatFlow backend:
signing in and out, managing friendships and sending messages. It shares
the session cache with chatflowd, so a login here is picked up by the
daemon on its next start.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
}

// env bundles the pieces every command needs: the session cache and an
// authenticated backend client.
type env struct {
	cfg      *config.Config
	db       *store.DB
	api      *backend.Client
	sessions *session.Store
}

// openEnv resolves the session, opens its cache and restores the persisted
// token into the backend client. Callers defer close.
func openEnv() (*env, error) {
	_ = godotenv.Load()

	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	if err := session.EnsureDir(name); err != nil {
		return nil, err
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}

	db, err := store.Open(session.CacheDBPath(name))
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	api := backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.RequestTimeout()))
	sessions := session.NewStore(db, api, bus.New(), zap.NewNop())
	if _, err := sessions.Restore(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &env{cfg: cfg, db: db, api: api, sessions: sessions}, nil
}

func (e *env) close() {
	_ = e.db.Close()
}

// requireIdentity fails the command when no session is signed in.
func (e *env) requireIdentity() (session.Identity, error) {
	id, ok := e.sessions.Identity()
	if !ok {
		return session.Identity{}, fmt.Errorf("not signed in (run: chatflowctl login)")
	}
	return id, nil
}
