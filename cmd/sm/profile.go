package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/models"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage brand and organizer profiles",
	}

	cmd.AddCommand(newProfileAddCmd())
	cmd.AddCommand(newProfileListCmd())
	return cmd
}

func newProfileAddCmd() *cobra.Command {
	var (
		configPath string
		p          models.Profile
	)

	cmd := &cobra.Command{
		Use:   "add <profile-id>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p.ID = args[0]
			saved, err := identity.NewStore(gormDB).Upsert(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s profile %s for account %s\n", saved.Role, saved.ID, saved.AccountID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	cmd.Flags().StringVar(&p.AccountID, "account", "", "owning account ID (required)")
	cmd.Flags().StringVar(&p.Role, "role", "", "profile role, e.g. brand or organizer (required)")
	cmd.Flags().StringVar(&p.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&p.Keywords, "keywords", "", "free-form keywords")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("role")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <account-id>",
		Short: "List the profiles an account owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ps, err := identity.NewStore(gormDB).ProfilesOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ps) == 0 {
				fmt.Fprintln(out, "No profiles found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tROLE\tNAME\tUPDATED")
			for _, p := range ps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Role, p.DisplayName, formatAge(p.UpdatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	return cmd
}
