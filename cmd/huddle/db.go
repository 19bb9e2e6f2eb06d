package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huddleworks/huddle/internal/config"
	"github.com/huddleworks/huddle/internal/db"
	"github.com/huddleworks/huddle/internal/guard"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Huddle database",
		Long:  "Creates the database if needed and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %s config from %s\n", cfg.Env, configPath)

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database.Host, cfg.Database.Port)
		if err != nil {
			return fmt.Errorf("connect to %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nHuddle database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Huddle database",
		Long: `Drops the Huddle database and re-creates it (migrate included).

Refused outright when the config environment is production.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded %s config from %s\n", cfg.Env, configPath)

	if !guard.IsOperationAllowed("drop_all_tables", cfg.Env) {
		return fmt.Errorf("db reset is not allowed in %s", cfg.Env)
	}

	if !skipConfirm {
		if !confirmReset(cmd, cfg) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if err := os.Remove(cfg.Database.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", cfg.Database.Path, err)
		}
		fmt.Fprintf(out, "Removed %s\n", cfg.Database.Path)
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Database.Host, cfg.Database.Port)
		if err != nil {
			return fmt.Errorf("connect to %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Name)
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nHuddle database reset successfully.")
	return nil
}

// confirmReset prompts for an explicit "yes". When stdin is not a terminal
// (scripts, CI) there is nobody to answer, so it refuses rather than hang.
func confirmReset(cmd *cobra.Command, cfg *config.Config) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	if in == os.Stdin && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(out, "Refusing to reset without a terminal; pass --yes to confirm.")
		return false
	}

	target := cfg.Database.Path
	if cfg.Database.Driver == "mysql" {
		target = cfg.Database.Name
	}
	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
