package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newDraftCommand(ctx *commandContext) *cobra.Command {
	draftCmd := &cobra.Command{
		Use:   "draft",
		Short: "Work with in-progress inspection drafts",
	}
	draftCmd.AddCommand(newDraftShowCommand(ctx))
	draftCmd.AddCommand(newDraftSaveCommand(ctx))
	return draftCmd
}

func newDraftShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <assignment-id>",
		Short: "Print the saved draft answers for an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				record, err := stack.drafts.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No draft for this assignment")
					return nil
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Last saved: %s\n", record.UpdatedAt.Local().Format(time.RFC1123))
				var pretty map[string]any
				if err := json.Unmarshal(record.Answers, &pretty); err == nil {
					encoded, _ := json.MarshalIndent(pretty, "", "  ")
					fmt.Fprintln(out, string(encoded))
					return nil
				}
				fmt.Fprintln(out, string(record.Answers))
				return nil
			})
		},
	}
}

func newDraftSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save <assignment-id> <answers-file>",
		Short: "Save draft answers for an assignment from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				answers, err := readAnswersFile(args[1])
				if err != nil {
					return err
				}
				if err := stack.drafts.Save(cmd.Context(), args[0], answers); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Draft saved")
				return nil
			})
		},
	}
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <assignment-id> <answers-file>",
		Short: "Freeze answers into a queued submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				answers, err := readAnswersFile(args[1])
				if err != nil {
					return err
				}
				if err := stack.forms.Finalize(cmd.Context(), args[0], answers); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Finalized assignment %s; submission queued for sync\n", args[0])
				return nil
			})
		},
	}
}

func newEvictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "evict <assignment-id>",
		Short: "Remove all local state for a fully synced assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *commandStack) error {
				if err := stack.forms.Evict(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted assignment %s from the local store\n", args[0])
				return nil
			})
		},
	}
}

func readAnswersFile(path string) (json.RawMessage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("answers file %s is not valid JSON", path)
	}
	return json.RawMessage(content), nil
}
