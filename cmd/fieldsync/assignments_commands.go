package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var workTypeCaser = cases.Title(language.English)

func newAssignmentsCommand(ctx *commandContext) *cobra.Command {
	assignmentsCmd := &cobra.Command{
		Use:   "assignments",
		Short: "Inspect locally cached assignments",
	}
	assignmentsCmd.AddCommand(newAssignmentsListCommand(ctx))
	assignmentsCmd.AddCommand(newAssignmentsShowCommand(ctx))
	return assignmentsCmd
}

func newAssignmentsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				assignments, err := stack.store.ListAssignments(cmd.Context())
				if err != nil {
					return err
				}
				if len(assignments) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No assignments cached; run 'fieldsync pull'")
					return nil
				}

				rows := make([][]string, 0, len(assignments))
				for _, a := range assignments {
					rows = append(rows, []string{
						a.ID,
						workTypeCaser.String(a.WorkType),
						a.Location,
						a.ScheduledFor.Local().Format("2006-01-02 15:04"),
						string(a.Status),
						yesNo(a.Synced),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Work Type", "Location", "Scheduled", "Status", "Synced"},
					rows,
					nil,
				))
				return nil
			})
		},
	}
}

func newAssignmentsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <assignment-id>",
		Short: "Show one assignment with its template and draft state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				session, err := stack.forms.Open(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				a := session.Assignment
				for _, line := range renderSectionHeader("Assignment "+a.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Application", statusInfo, a.ApplicationID, colorize))
				fmt.Fprintln(out, renderStatusLine("Work type", statusInfo, workTypeCaser.String(a.WorkType), colorize))
				fmt.Fprintln(out, renderStatusLine("Location", statusInfo, a.Location, colorize))
				fmt.Fprintln(out, renderStatusLine("Scheduled", statusInfo, a.ScheduledFor.Local().Format(time.RFC1123), colorize))
				fmt.Fprintln(out, renderStatusLine("Status", statusInfo, string(a.Status), colorize))

				if session.Template != nil {
					fmt.Fprintln(out, renderStatusLine("Template", statusOK,
						fmt.Sprintf("%s (v%d)", session.Template.Name, session.Template.Version), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Template", statusWarn, "not cached; run 'fieldsync pull'", colorize))
				}
				if session.Draft != nil {
					fmt.Fprintln(out, renderStatusLine("Draft", statusOK,
						"last saved "+session.Draft.UpdatedAt.Local().Format(time.RFC1123), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Draft", statusInfo, "none", colorize))
				}

				items, err := stack.store.MediaByAssignment(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Media queued", statusInfo, fmt.Sprintf("%d", len(items)), colorize))

				entry, err := stack.submissions.Get(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				if entry != nil {
					kind := statusInfo
					message := fmt.Sprintf("queued since %s", entry.EnqueuedAt.Local().Format(time.RFC1123))
					if entry.NeedsAttention {
						kind = statusError
						message = "needs attention: " + entry.LastError
					}
					fmt.Fprintln(out, renderStatusLine("Submission", kind, message, colorize))
				}
				return nil
			})
		},
	}
}
