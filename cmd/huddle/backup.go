package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddleworks/huddle/internal/backup"
	"github.com/huddleworks/huddle/internal/config"
	"github.com/huddleworks/huddle/internal/db"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot and retention commands",
	}

	cmd.AddCommand(newBackupFullCmd())
	cmd.AddCommand(newBackupIncrementalCmd())
	cmd.AddCommand(newBackupCleanupCmd())
	return cmd
}

func newBackupFullCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "full",
		Short: "Write a full snapshot of every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupFull(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	return cmd
}

func runBackupFull(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	res, err := backup.Full(gormDB, cfg.Backup.Dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", res.File)
	printCounts(cmd, res.Counts)
	return nil
}

func newBackupIncrementalCmd() *cobra.Command {
	var (
		configPath  string
		windowHours int
	)

	cmd := &cobra.Command{
		Use:   "incremental",
		Short: "Snapshot rows changed within the lookback window",
		Long:  "Writes a snapshot of rows mutated within the lookback window. When nothing changed, no file is written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupIncremental(cmd, configPath, windowHours)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	cmd.Flags().IntVar(&windowHours, "window-hours", 0, "lookback window in hours (default: config incremental_window_hours)")
	return cmd
}

func runBackupIncremental(cmd *cobra.Command, configPath string, windowHours int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if windowHours <= 0 {
		windowHours = cfg.Backup.IncrementalWindowHours
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	res, err := backup.Incremental(gormDB, cfg.Backup.Dir, time.Duration(windowHours)*time.Hour)
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintf(out, "No rows changed in the last %dh; nothing written.\n", windowHours)
		return nil
	}
	fmt.Fprintf(out, "Wrote %s (last %dh)\n", res.File, windowHours)
	printCounts(cmd, res.Counts)
	return nil
}

func newBackupCleanupCmd() *cobra.Command {
	var (
		configPath string
		retain     int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete full snapshots beyond the retention count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupCleanup(cmd, configPath, retain)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	cmd.Flags().IntVar(&retain, "retain", 0, "full snapshots to keep (default: config retain)")
	return cmd
}

func runBackupCleanup(cmd *cobra.Command, configPath string, retain int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if retain <= 0 {
		retain = cfg.Backup.Retain
	}

	res, err := backup.Cleanup(cfg.Backup.Dir, retain)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Retained %d, removed %d", res.Retained, res.Removed)
	if res.Failed > 0 {
		fmt.Fprintf(out, " (%d deletions failed, see logs)", res.Failed)
	}
	fmt.Fprintln(out)
	return nil
}

func printCounts(cmd *cobra.Command, counts map[string]int) {
	out := cmd.OutOrStdout()
	for _, table := range db.TableNames() {
		fmt.Fprintf(out, "  %-22s %d\n", table, counts[table])
	}
}
