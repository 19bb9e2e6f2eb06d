package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddleworks/huddle/internal/config"
	"github.com/huddleworks/huddle/internal/db"
	"github.com/huddleworks/huddle/internal/localstore"
	"github.com/huddleworks/huddle/internal/migration"
)

func newMigrateLocalCmd() *cobra.Command {
	var (
		configPath string
		blobPath   string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "migrate-local",
		Short: "Migrate client-local chat history into durable storage",
		Long: `Runs the recovery and migration pipeline against the local key-value
store. With --file, the blob is loaded into the store first, so a raw
export (even a corrupted one) can be migrated directly.

Migration is idempotent: once the local store records completion,
further runs are no-ops.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateLocal(cmd, configPath, blobPath, userID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	cmd.Flags().StringVar(&blobPath, "file", "", "chat-history blob to load before migrating")
	cmd.Flags().StringVar(&userID, "user", "", "owner of the migrated conversations (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runMigrateLocal(cmd *cobra.Command, configPath, blobPath, userID string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	port, err := localstore.OpenBadger(localstore.DefaultBadgerConfig(cfg.LocalStore.Path))
	if err != nil {
		return err
	}
	defer port.Close()

	if blobPath != "" {
		blob, err := os.ReadFile(blobPath)
		if err != nil {
			return fmt.Errorf("read blob %s: %w", blobPath, err)
		}
		if err := port.Set(localstore.KeyChatHistory, blob); err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %d bytes from %s\n", len(blob), blobPath)
	}

	coord := migration.New(gormDB, localstore.New(port))
	res, err := coord.Migrate(cmd.Context(), userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Migrated %d conversation(s), %d message(s) for %s\n",
		res.ConversationsCreated, res.MessagesCreated, userID)
	if res.Success {
		fmt.Fprintln(out, "Migration complete; local blob cleared.")
		return nil
	}

	fmt.Fprintf(out, "%d item(s) failed; local blob kept for retry:\n", len(res.Errors))
	for _, ie := range res.Errors {
		fmt.Fprintf(out, "  %s (%q): %s\n", ie.SourceID, ie.Title, ie.Reason)
	}
	return fmt.Errorf("migration incomplete: %d item(s) failed", len(res.Errors))
}
