package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/sponsormatch/internal/identity"
	"github.com/zulandar/sponsormatch/internal/matches"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Inspect and suggest matches",
	}

	cmd.AddCommand(newMatchSuggestCmd())
	cmd.AddCommand(newMatchListCmd())
	return cmd
}

func newMatchSuggestCmd() *cobra.Command {
	var (
		configPath string
		score      float64
		reasons    []string
	)

	cmd := &cobra.Command{
		Use:   "suggest <profile-id> <profile-id>",
		Short: "Record an algorithmic match suggestion",
		Long: `Records a suggested match between two profiles. Profiles may be given in
either order. An existing manual match is upgraded to hybrid provenance.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			aSide, bSide, err := orientPair(cmd, gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			m, err := matches.Suggest(gormDB, aSide, bSide, score, reasons)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Match %s: %s/%s %s, %s (score %.2f)\n",
				m.ID, m.ASideEntityID, m.BSideEntityID, m.Status, m.Provenance, m.Score)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	cmd.Flags().Float64Var(&score, "score", 0, "suggestion score, greater than zero (required)")
	cmd.Flags().StringSliceVar(&reasons, "reason", nil, "reason for the suggestion (repeatable)")
	cmd.MarkFlagRequired("score")
	return cmd
}

// orientPair orders two profiles as (A-side, B-side) using the seeded
// channel roles.
func orientPair(cmd *cobra.Command, gormDB *gorm.DB, x, y string) (string, string, error) {
	ids := identity.NewStore(gormDB)
	px, err := ids.Profile(cmd.Context(), x)
	if err != nil {
		return "", "", err
	}
	py, err := ids.Profile(cmd.Context(), y)
	if err != nil {
		return "", "", err
	}
	pairs, err := rolePairs(gormDB)
	if err != nil {
		return "", "", err
	}
	for _, rp := range pairs {
		switch {
		case px.Role == rp.ASide && py.Role == rp.BSide:
			return px.ID, py.ID, nil
		case py.Role == rp.ASide && px.Role == rp.BSide:
			return py.ID, px.ID, nil
		}
	}
	return "", "", fmt.Errorf("no channel pairs roles %q and %q: %w", px.Role, py.Role, models.ErrInvalidPairing)
}

func newMatchListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list <profile-id>",
		Short: "List matches involving a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var statuses []models.MatchStatus
			if status != "" {
				for _, s := range strings.Split(status, ",") {
					statuses = append(statuses, models.MatchStatus(strings.TrimSpace(s)))
				}
			}
			ms, err := matches.ListFor(gormDB, args[0], statuses...)
			if err != nil {
				return err
			}
			return printMatches(cmd, ms)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	cmd.Flags().StringVar(&status, "status", "", "comma-separated status filter")
	return cmd
}

func printMatches(cmd *cobra.Command, ms []models.Match) error {
	out := cmd.OutOrStdout()
	if len(ms) == 0 {
		fmt.Fprintln(out, "No matches found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tA-SIDE\tB-SIDE\tSTATUS\tPROVENANCE\tSCORE\tREASONS")
	for _, m := range ms {
		reasons, err := matches.Reasons(&m)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			m.ID, m.ASideEntityID, m.BSideEntityID, m.Status, m.Provenance, m.Score, strings.Join(reasons, "; "))
	}
	return w.Flush()
}
