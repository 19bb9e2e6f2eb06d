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

func newGuardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Data protection commands",
	}

	cmd.AddCommand(newGuardAssessCmd())
	cmd.AddCommand(newGuardOrphansCmd())
	cmd.AddCommand(newGuardSafeDeleteCmd())
	return cmd
}

func newGuardAssessCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assess <owner-id>",
		Short: "Report what data an owner would lose if deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardAssess(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	return cmd
}

func runGuardAssess(cmd *cobra.Command, configPath, ownerID string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	imp, err := guard.AssessImportance(gormDB, ownerID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Owner %s:\n", ownerID)
	fmt.Fprintf(out, "  team members:  %d\n", imp.TeamMembers)
	fmt.Fprintf(out, "  conversations: %d\n", imp.Conversations)
	fmt.Fprintf(out, "  messages:      %d\n", imp.Messages)
	if imp.HasDependents() {
		fmt.Fprintln(out, "\nDeletion would be refused; soft delete with --preserve-data instead.")
	} else {
		fmt.Fprintln(out, "\nNo dependent data.")
	}
	return nil
}

func newGuardOrphansCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Audit child rows whose parent is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardOrphans(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	return cmd
}

func runGuardOrphans(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	edges := []struct {
		child, parent, fk string
	}{
		{"team_members", "users", "user_id"},
		{"conversations", "users", "owner_id"},
		{"messages", "conversations", "conversation_id"},
		{"conversation_backups", "users", "user_id"},
	}

	total := 0
	for _, e := range edges {
		orphans, err := guard.FindOrphans(gormDB, e.child, e.parent, e.fk)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-22s -> %-14s %d orphan(s)\n", e.child, e.parent, len(orphans))
		for _, o := range orphans {
			fmt.Fprintf(out, "    %s=%s created %s\n", e.fk, o.FKValue, o.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		total += len(orphans)
	}

	estimate, err := guard.EstimateDeletedOwners(gormDB)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d orphaned row(s) total.\n", total)
	fmt.Fprintf(out, "At least %d owner(s) were deleted out-of-band (lower bound).\n", estimate)
	return nil
}

func newGuardSafeDeleteCmd() *cobra.Command {
	var (
		configPath   string
		preserveData bool
		reason       string
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "safe-delete <owner-id>",
		Short: "Deactivate an owner after an importance check",
		Long: `Assesses what data the owner holds, then deactivates the account.

Owners with dependent data are refused unless --preserve-data is set, which
soft-deletes the account and keeps every dependent row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuardSafeDelete(cmd, configPath, args[0], preserveData, reason, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to Huddle config file")
	cmd.Flags().BoolVar(&preserveData, "preserve-data", false, "soft-delete even when dependent data exists")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runGuardSafeDelete(cmd *cobra.Command, configPath, ownerID string, preserveData bool, reason string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}

	if !skipConfirm {
		if !confirmSafeDelete(cmd, ownerID) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	outcome, err := guard.SafeDelete(gormDB, ownerID, guard.Options{
		PreserveData: preserveData,
		Reason:       reason,
		ActorID:      "cli",
	})
	if err != nil {
		return err
	}

	if !outcome.Success {
		fmt.Fprintf(out, "Refused: %s\n", outcome.Reason)
		return fmt.Errorf("delete refused for %s", ownerID)
	}
	fmt.Fprintf(out, "Owner %s deactivated (data preserved).\n", ownerID)
	return nil
}

func confirmSafeDelete(cmd *cobra.Command, ownerID string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	if in == os.Stdin && !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(out, "Refusing to delete without a terminal; pass --yes to confirm.")
		return false
	}

	fmt.Fprintf(out, "This will deactivate owner %q. Dependent data is never removed.\n", ownerID)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
