package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huddleworks/huddle/internal/api"
	"github.com/huddleworks/huddle/internal/backup"
	"github.com/huddleworks/huddle/internal/config"
	"github.com/huddleworks/huddle/internal/db"
	"github.com/huddleworks/huddle/internal/notify"
	"github.com/huddleworks/huddle/internal/notify/discord"
	"github.com/huddleworks/huddle/internal/notify/slack"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Huddle API server",
		Long:  "Serves the HTTP API and, when a backup schedule is configured, runs scheduled full backups with retention cleanup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %s config from %s\n", cfg.Env, configPath)

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	if cfg.Backup.Schedule != "" {
		sched, err := backup.NewScheduler(backup.SchedulerOpts{
			DB:       gormDB,
			Dir:      cfg.Backup.Dir,
			Retain:   cfg.Backup.Retain,
			Notifier: notifier,
		})
		if err != nil {
			return err
		}
		if err := sched.Start(cfg.Backup.Schedule); err != nil {
			return err
		}
		defer sched.Stop()
		fmt.Fprintf(out, "Backup schedule %q active (retain %d)\n", cfg.Backup.Schedule, cfg.Backup.Retain)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return api.Start(ctx, api.StartOpts{
		DB:        gormDB,
		Port:      cfg.Server.Port,
		BackupDir: cfg.Backup.Dir,
		Env:       cfg.Env,
		Out:       out,
	})
}

// buildNotifier picks the configured chat adapter. Slack wins when both are
// configured; nil means notifications are off.
func buildNotifier(cfg *config.Config) (notify.Adapter, error) {
	if cfg.Notify.Slack.Token != "" {
		a, err := slack.New(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	if cfg.Notify.Discord.Token != "" {
		a, err := discord.New(cfg.Notify.Discord.Token, cfg.Notify.Discord.Channel)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, nil
}
