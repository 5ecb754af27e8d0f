package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/sponsormatch/internal/models"
	"github.com/zulandar/sponsormatch/internal/reconcile"
)

// newChannelCmd builds the command tree for one reconciliation channel.
func newChannelCmd(kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
	}

	cmd.AddCommand(newExpressCmd(kind))
	cmd.AddCommand(newRespondCmd(kind))
	cmd.AddCommand(newWithdrawCmd(kind))
	cmd.AddCommand(newStatusCmd(kind))
	cmd.AddCommand(newListCmd(kind))
	cmd.AddCommand(newCountsCmd(kind))
	return cmd
}

// channelFlags are shared by every channel subcommand.
type channelFlags struct {
	configPath string
	actor      string
}

func (f *channelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "sponsormatch.yaml", "path to Sponsormatch config file")
	cmd.Flags().StringVar(&f.actor, "as", "", "acting account ID (required)")
	cmd.MarkFlagRequired("as")
}

func (f *channelFlags) engine(cmd *cobra.Command, kind string) (*reconcile.Engine, error) {
	reg, err := openEngines(f.configPath, newLogger(cmd))
	if err != nil {
		return nil, err
	}
	return reg.Engine(kind)
}

func newExpressCmd(kind string) *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "express <profile-id>",
		Short: "Express " + kind + " in a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			out, err := e.ExpressTo(cmd.Context(), flags.actor, args[0])
			if reconcile.IsConflict(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to do: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newRespondCmd(kind string) *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "respond <expression-id> <accepted|rejected>",
		Short: "Accept or reject a received " + kind,
		Long: `Accepting also records interest back on your behalf, so the pair becomes a
match straight away. Rejecting is silent: the sender is not notified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision := reconcile.Decision(strings.ToLower(args[1]))
			if decision != reconcile.Accept && decision != reconcile.Reject {
				return fmt.Errorf("decision must be %q or %q", reconcile.Accept, reconcile.Reject)
			}
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			out, err := e.Respond(cmd.Context(), flags.actor, args[0], decision)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newWithdrawCmd(kind string) *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "withdraw <expression-id>",
		Short: "Withdraw a " + kind + " you sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			out, err := e.Withdraw(cmd.Context(), flags.actor, args[0])
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newStatusCmd(kind string) *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "status <profile-id>...",
		Short: "Show your " + kind + " status toward profiles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			statuses, err := e.BatchStatus(cmd.Context(), flags.actor, args)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(statuses))
			for id := range statuses {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROFILE\tSTATUS")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", id, statuses[id])
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

func newListCmd(kind string) *cobra.Command {
	var (
		flags     channelFlags
		direction string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your sent, received or mutual " + kind,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []models.ExpressionStatus
			if status != "" {
				for _, s := range strings.Split(status, ",") {
					st := models.ExpressionStatus(strings.TrimSpace(s))
					if !st.Valid() {
						return fmt.Errorf("unknown status %q", st)
					}
					statuses = append(statuses, st)
				}
			}
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			var xs []models.Expression
			switch direction {
			case "sent":
				xs, err = e.ListSent(cmd.Context(), flags.actor, statuses...)
			case "received":
				xs, err = e.ListReceived(cmd.Context(), flags.actor, statuses...)
			case "mutual":
				xs, err = e.ListMutual(cmd.Context(), flags.actor)
			default:
				return fmt.Errorf("direction must be sent, received or mutual")
			}
			if err != nil {
				return err
			}
			printExpressions(cmd, xs)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&direction, "direction", "sent", "sent, received or mutual")
	cmd.Flags().StringVar(&status, "status", "", "comma-separated status filter (sent/received only)")
	return cmd
}

func newCountsCmd(kind string) *cobra.Command {
	var flags channelFlags

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show your " + kind + " totals by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.engine(cmd, kind)
			if err != nil {
				return err
			}
			c, err := e.Counts(cmd.Context(), flags.actor)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DIRECTION\tPENDING\tACCEPTED\tREJECTED\tWITHDRAWN\tTOTAL")
			fmt.Fprintf(w, "sent\t%d\t%d\t%d\t%d\t%d\n", c.Sent.Pending, c.Sent.Accepted, c.Sent.Rejected, c.Sent.Withdrawn, c.Sent.Total)
			fmt.Fprintf(w, "received\t%d\t%d\t%d\t%d\t%d\n", c.Received.Pending, c.Received.Accepted, c.Received.Rejected, c.Received.Withdrawn, c.Received.Total)
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

func printOutcome(cmd *cobra.Command, o *reconcile.Outcome) {
	out := cmd.OutOrStdout()
	x := o.Expression
	fmt.Fprintf(out, "Expression %s: %s -> %s (%s)\n", x.ID, x.SenderID, x.ReceiverID, x.Status)
	if o.Match != nil {
		fmt.Fprintf(out, "Match %s: %s/%s %s, %s\n", o.Match.ID, o.Match.ASideEntityID, o.Match.BSideEntityID, o.Match.Status, o.Match.Provenance)
	}
	if o.Conversation != nil {
		state := "open"
		if o.Conversation.ReadOnly {
			state = "archived"
		}
		fmt.Fprintf(out, "Conversation %s (%s)\n", o.Conversation.ID, state)
	}
}

func printExpressions(cmd *cobra.Command, xs []models.Expression) {
	if len(xs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No expressions found.")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tSTATUS\tAGE")
	for _, x := range xs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", x.ID, x.SenderID, x.ReceiverID, x.Status, formatAge(x.CreatedAt))
	}
	w.Flush()
}
