// ABOUTME: Project commands: list, show, create, rename and delete
// ABOUTME: Tabular output in the same shape as the web dashboard

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/taskboard/internal/api"
	"github.com/2389/taskboard/internal/apiclient"
	"github.com/2389/taskboard/internal/store"
	"github.com/2389/taskboard/internal/tracker"
)

func projectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProjects(cmd, a)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects with task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProjects(cmd, a)
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project and its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			c := a.client()
			p, err := c.GetProject(cmd.Context(), args[0])
			if err != nil {
				return notFound(err, "project", args[0])
			}
			tasks, err := c.ListTasks(cmd.Context(), p.ID, "")
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan)
			fmt.Fprintln(a.out)
			cyan.Fprintf(a.out, "  %s\n", p.Name)
			if p.Description != "" {
				fmt.Fprintf(a.out, "  %s\n", p.Description)
			}
			fmt.Fprintf(a.out, "  ID: %s\n", p.ID)
			fmt.Fprintf(a.out, "  Progress: %d%% complete (%d tasks)\n", progress(tasks), len(tasks))
			fmt.Fprintln(a.out)
			printTasks(a, tasks)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			desc, _ := cmd.Flags().GetString("description")
			p, err := a.client().CreateProject(cmd.Context(), tracker.ProjectForm{Name: args[0], Description: desc})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Created project %s: %s\n", p.ID, p.Name)
			return nil
		},
	}
	create.Flags().String("description", "", "project description (Markdown)")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a project's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			var patch api.ProjectPatch
			if cmd.Flags().Changed("name") {
				name, _ := cmd.Flags().GetString("name")
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				desc, _ := cmd.Flags().GetString("description")
				patch.Description = &desc
			}
			if patch.Name == nil && patch.Description == nil {
				return errors.New("nothing to change\nHint: pass --name and/or --description")
			}
			p, err := a.client().UpdateProject(cmd.Context(), args[0], patch)
			if err != nil {
				return notFound(err, "project", args[0])
			}
			fmt.Fprintf(a.out, "✓ Updated project %s: %s\n", p.ID, p.Name)
			return nil
		},
	}
	update.Flags().String("name", "", "new name")
	update.Flags().String("description", "", "new description")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			if err := a.client().DeleteProject(cmd.Context(), args[0]); err != nil {
				var apiErr *apiclient.Error
				if errors.As(err, &apiErr) && apiErr.StatusCode == 409 {
					return errors.New("project still has tasks\nHint: delete its tasks first, or enable database.cascade_deletes")
				}
				return err
			}
			fmt.Fprintf(a.out, "✓ Deleted project %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, create, update, del)
	return cmd
}

func listProjects(cmd *cobra.Command, a *app) error {
	if err := a.requireToken(); err != nil {
		return err
	}
	c := a.client()
	projects, err := c.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(a.out, "No projects yet.")
		return nil
	}
	tasks, err := c.ListTasks(cmd.Context(), "", "")
	if err != nil {
		return err
	}
	counts := make(map[string]int, len(projects))
	for _, t := range tasks {
		counts[t.ProjectID]++
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tTASKS\tCREATED")
	fmt.Fprintln(w, "  --\t----\t-----\t-------")
	for _, p := range projects {
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", p.ID, truncate(p.Name, 32), counts[p.ID], p.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	return w.Flush()
}

func progress(tasks []api.TaskResponse) int {
	st := make([]*store.Task, len(tasks))
	for i, t := range tasks {
		st[i] = &store.Task{Status: store.TaskStatus(t.Status)}
	}
	return tracker.ProgressPercent(st)
}

// notFound rewrites a 404 into a message naming what was missing.
func notFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
