package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Manage captured media evidence",
	}
	mediaCmd.AddCommand(newMediaAddCommand(ctx))
	mediaCmd.AddCommand(newMediaListCommand(ctx))
	mediaCmd.AddCommand(newMediaRetryCommand(ctx))
	return mediaCmd
}

func newMediaAddCommand(ctx *commandContext) *cobra.Command {
	var caption string

	cmd := &cobra.Command{
		Use:   "add <assignment-id> <slot-id> <file>",
		Short: "Attach a media file to an assignment's form slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				content, err := os.ReadFile(args[2])
				if err != nil {
					return fmt.Errorf("read media file: %w", err)
				}
				mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(args[2])))
				if mimeType == "" {
					mimeType = "application/octet-stream"
				}
				item, err := stack.forms.AttachMedia(cmd.Context(), args[0], args[1], content, mimeType, caption)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued media %s for upload\n", item.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Caption stored with the media item")
	return cmd
}

func newMediaListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued media across assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				items, err := stack.media.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Media queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.AssignmentID,
						item.SlotID,
						string(item.Status),
						fmt.Sprintf("%d", item.RetryCount),
						item.LastError,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Assignment", "Slot", "Status", "Retries", "Last Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newMediaRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <media-id>",
		Short: "Return an errored media item to the upload queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				if err := stack.media.Retry(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Media %s re-queued; it will upload on the next sync\n", args[0])
				return nil
			})
		},
	}
}
