package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/backend"
)

func newPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download assignments and form templates for offline work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				if !stack.probeOnline(cmd.Context()) {
					return errors.New("backend unreachable; try again when connected")
				}
				if err := stack.coordinator.DownloadAssignments(cmd.Context()); err != nil {
					return fmt.Errorf("pull assignments: %w", err)
				}
				assignments, err := stack.store.ListAssignments(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d assignments into the local store\n", len(assignments))
				return nil
			})
		},
	}
}

func newPushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload queued media and finalized submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				if !stack.probeOnline(cmd.Context()) {
					return errors.New("backend unreachable; queued work is safe and will sync later")
				}
				report, err := stack.coordinator.SyncPendingWork(cmd.Context())
				if err != nil {
					if errors.Is(err, backend.ErrOffline) {
						return errors.New("backend unreachable; queued work is safe and will sync later")
					}
					return fmt.Errorf("push queued work: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Media uploaded:      %d\n", report.MediaUploaded)
				fmt.Fprintf(out, "Media failed:        %d\n", report.MediaFailed)
				fmt.Fprintf(out, "Submissions sent:    %d\n", report.SubmissionsSent)
				fmt.Fprintf(out, "Submissions failed:  %d\n", report.SubmissionsFailed)
				if report.Blocked > 0 {
					fmt.Fprintf(out, "Submissions waiting on media: %d\n", report.Blocked)
				}
				if !report.Clean() {
					fmt.Fprintln(out, "Some attempts failed; run 'fieldsync status' for details")
				}
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local queue and sync health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				cmdCtx := cmd.Context()

				online := stack.probeOnline(cmdCtx)

				health, err := stack.store.Health(cmdCtx)
				if err != nil {
					return err
				}

				for _, line := range renderSectionHeader("Connectivity", colorize) {
					fmt.Fprintln(out, line)
				}
				kind := statusOK
				message := "backend reachable"
				if !online {
					kind = statusWarn
					message = "offline; queued work will sync when connected"
				}
				fmt.Fprintln(out, renderStatusLine("Backend", kind, message, colorize))

				for _, line := range renderSectionHeader("Local store", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Assignments", statusInfo, fmt.Sprintf("%d cached", health.Assignments), colorize))
				fmt.Fprintln(out, renderStatusLine("Templates", statusInfo, fmt.Sprintf("%d cached", health.Templates), colorize))
				fmt.Fprintln(out, renderStatusLine("Drafts", statusInfo, fmt.Sprintf("%d in progress", health.Drafts), colorize))
				fmt.Fprintln(out, renderStatusLine("Media queued", statusInfo, fmt.Sprintf("%d awaiting upload, %d errored", health.PendingMedia, health.ErroredMedia), colorize))
				fmt.Fprintln(out, renderStatusLine("Submissions", statusInfo, fmt.Sprintf("%d awaiting acknowledgment", health.Submissions), colorize))

				flaggedMedia, err := stack.media.NeedsAttention(cmdCtx)
				if err != nil {
					return err
				}
				flaggedSubmissions, err := stack.submissions.NeedsAttention(cmdCtx)
				if err != nil {
					return err
				}
				if len(flaggedMedia) > 0 || len(flaggedSubmissions) > 0 {
					for _, line := range renderSectionHeader("Needs attention", colorize) {
						fmt.Fprintln(out, line)
					}
					for _, item := range flaggedMedia {
						fmt.Fprintln(out, renderStatusLine("Media "+shortID(item.ID), statusError,
							fmt.Sprintf("assignment %s: %s", item.AssignmentID, item.LastError), colorize))
					}
					for _, entry := range flaggedSubmissions {
						fmt.Fprintln(out, renderStatusLine("Submission", statusError,
							fmt.Sprintf("assignment %s: %s", entry.AssignmentID, entry.LastError), colorize))
					}
					fmt.Fprintln(out, "Retry parked media with 'fieldsync media retry <id>'")
				}
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
