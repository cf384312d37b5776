// ABOUTME: Task commands: list, show, create, status, update and delete
// ABOUTME: Flags mirror the fields of the web task form

package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/taskboard/internal/api"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func tasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage tasks",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			projectID, _ := cmd.Flags().GetString("project")
			status, _ := cmd.Flags().GetString("status")
			tasks, err := a.client().ListTasks(cmd.Context(), projectID, status)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(a.out, "No tasks.")
				return nil
			}
			printTasks(a, tasks)
			return nil
		},
	}
	list.Flags().String("project", "", "only tasks in this project")
	list.Flags().String("status", "", "only tasks with this status (todo, in_progress, review, done)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			t, err := a.client().GetTask(cmd.Context(), args[0])
			if err != nil {
				return notFound(err, "task", args[0])
			}

			cyan := color.New(color.FgCyan)
			fmt.Fprintln(a.out)
			cyan.Fprintf(a.out, "  %s\n", t.Title)
			fmt.Fprintf(a.out, "  ID:       %s\n", t.ID)
			fmt.Fprintf(a.out, "  Project:  %s\n", t.ProjectID)
			fmt.Fprintf(a.out, "  Status:   %s\n", store.TaskStatus(t.Status).Label())
			fmt.Fprintf(a.out, "  Priority: %s\n", store.TaskPriority(t.Priority).Label())
			if t.DueDate != "" {
				fmt.Fprintf(a.out, "  Due:      %s\n", t.DueDate)
			}
			if t.Description != "" {
				fmt.Fprintln(a.out)
				for _, line := range strings.Split(t.Description, "\n") {
					fmt.Fprintf(a.out, "  %s\n", line)
				}
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			form := tracker.TaskForm{Title: args[0]}
			form.ProjectID, _ = cmd.Flags().GetString("project")
			form.Description, _ = cmd.Flags().GetString("description")
			form.Status, _ = cmd.Flags().GetString("status")
			form.Priority, _ = cmd.Flags().GetString("priority")
			form.DueDate, _ = cmd.Flags().GetString("due")

			// same checks the server runs, so typos fail without a round trip
			if err := form.Validate(); err != nil {
				return err
			}
			t, err := a.client().CreateTask(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Created task %s: %s\n", t.ID, t.Title)
			fmt.Fprintf(a.out, "  Status: %s  Priority: %s\n", t.Status, t.Priority)
			return nil
		},
	}
	create.Flags().String("project", "", "project ID (required)")
	create.Flags().String("description", "", "task description (Markdown)")
	create.Flags().String("status", "", "todo, in_progress, review or done (default todo)")
	create.Flags().String("priority", "", "low, medium or high (default medium)")
	create.Flags().String("due", "", "due date, YYYY-MM-DD")

	status := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			s := args[1]
			if !store.TaskStatus(s).Valid() {
				return errors.New(tracker.MsgInvalidStatus)
			}
			t, err := a.client().UpdateTask(cmd.Context(), args[0], api.TaskPatch{Status: &s})
			if err != nil {
				return notFound(err, "task", args[0])
			}
			fmt.Fprintf(a.out, "✓ %s is now %s\n", t.Title, store.TaskStatus(t.Status).Label())
			return nil
		},
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			var patch api.TaskPatch
			changed := false
			for flag, dst := range map[string]**string{
				"project":     &patch.ProjectID,
				"title":       &patch.Title,
				"description": &patch.Description,
				"priority":    &patch.Priority,
				"due":         &patch.DueDate,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
					changed = true
				}
			}
			if !changed {
				return errors.New("nothing to change")
			}
			t, err := a.client().UpdateTask(cmd.Context(), args[0], patch)
			if err != nil {
				return notFound(err, "task", args[0])
			}
			fmt.Fprintf(a.out, "✓ Updated task %s: %s\n", t.ID, t.Title)
			return nil
		},
	}
	update.Flags().String("project", "", "move to project ID")
	update.Flags().String("title", "", "new title")
	update.Flags().String("description", "", "new description")
	update.Flags().String("priority", "", "low, medium or high")
	update.Flags().String("due", "", "due date, YYYY-MM-DD (empty clears)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			if err := a.client().DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Deleted task %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, create, status, update, del)
	return cmd
}

func printTasks(a *app, tasks []api.TaskResponse) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	fmt.Fprintln(w, "  --\t-----\t------\t--------\t---")
	for _, t := range tasks {
		due := t.DueDate
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", t.ID, truncate(t.Title, 40), t.Status, t.Priority, due)
	}
	w.Flush()
}
