// ABOUTME: Assistant chat from the terminal through the server's chat proxy
// ABOUTME: One-shot or REPL; suggested tasks can be created in the chosen project

package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/taskboard/internal/assistant"
	"github.com/2389/taskboard/internal/store"
)

func chatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the project assistant (REPL if no message)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			projectID, _ := cmd.Flags().GetString("project")
			create, _ := cmd.Flags().GetBool("create")

			s := &chatSession{app: a, conv: &assistant.Conversation{}, projectID: projectID}
			s.widget = assistant.NewWidget(a.client(), nil)

			if projectID != "" {
				p, err := a.client().GetProject(cmd.Context(), projectID)
				if err != nil {
					return notFound(err, "project", projectID)
				}
				s.conv.SetProjectContext(assistant.ProjectContext(&store.Project{
					ID: p.ID, Name: p.Name, Description: p.Description,
				}))
			}

			if len(args) > 0 {
				reply, err := s.send(cmd, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if create && reply.TaskSuggestion != nil {
					return s.createSuggestion(cmd, reply.TaskSuggestion)
				}
				return nil
			}
			return s.repl(cmd)
		},
	}
	cmd.Flags().String("project", "", "project ID to give the assistant as context")
	cmd.Flags().Bool("create", false, "create the suggested task, if any (needs --project)")
	return cmd
}

type chatSession struct {
	*app
	widget    *assistant.Widget
	conv      *assistant.Conversation
	projectID string
	last      *assistant.Suggestion
}

func (s *chatSession) send(cmd *cobra.Command, msg string) (*assistant.Reply, error) {
	reply, err := s.widget.Send(cmd.Context(), s.conv, msg)
	if err != nil {
		if errors.Is(err, assistant.ErrNonConformingOutput) {
			return nil, errors.New("the assistant returned an unexpected reply, try again")
		}
		return nil, err
	}

	fmt.Fprintln(s.out, reply.Answer)
	s.last = reply.TaskSuggestion
	if sg := reply.TaskSuggestion; sg != nil {
		yellow := color.New(color.FgYellow)
		fmt.Fprintln(s.out)
		yellow.Fprintf(s.out, "  Suggested task: %s [%s]\n", sg.Title, sg.Priority)
		if sg.Description != "" {
			fmt.Fprintf(s.out, "  %s\n", sg.Description)
		}
		if sg.EstimatedHours != nil {
			fmt.Fprintf(s.out, "  Estimated effort: %gh\n", *sg.EstimatedHours)
		}
	}
	return reply, nil
}

func (s *chatSession) createSuggestion(cmd *cobra.Command, sg *assistant.Suggestion) error {
	if s.projectID == "" {
		return errors.New("choose a project for the suggested task\nHint: pass --project")
	}
	form := assistant.SuggestionForm(sg, s.projectID)
	if err := form.Validate(); err != nil {
		return err
	}
	t, err := s.client().CreateTask(cmd.Context(), form)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "✓ Created task %s: %s\n", t.ID, t.Title)
	return nil
}

func (s *chatSession) repl(cmd *cobra.Command) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	gray.Fprintln(s.out, "Type a message. /create adds the last suggestion, /quit exits.")

	scanner := bufio.NewScanner(s.in)
	for {
		cyan.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/create":
			if s.last == nil {
				fmt.Fprintln(s.out, "No suggestion to create.")
				continue
			}
			if err := s.createSuggestion(cmd, s.last); err != nil {
				color.New(color.FgRed).Fprintf(s.out, "Error: %v\n", err)
				continue
			}
			s.last = nil
			continue
		}

		if _, err := s.send(cmd, line); err != nil {
			color.New(color.FgRed).Fprintf(s.out, "Error: %v\n", err)
		}
	}
}
