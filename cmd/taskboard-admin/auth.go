// ABOUTME: Identity commands: login, logout, me and status
// ABOUTME: login stores the bearer token the other commands send

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/taskboard/internal/apiclient"
)

func loginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			fromStdin, _ := cmd.Flags().GetBool("password-stdin")
			if email == "" {
				return errors.New("--email flag is required")
			}

			password, err := a.readPassword(fromStdin)
			if err != nil {
				return err
			}

			c := a.client()
			resp, err := c.SignIn(cmd.Context(), email, password)
			if err != nil {
				if apiclient.IsUnauthorized(err) {
					return errors.New("invalid email or password")
				}
				return err
			}
			if err := a.saveToken(resp.Token); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "✓ Signed in as %s\n", resp.User.Email)
			fmt.Fprintf(a.out, "  Token: %s (expires %s)\n", a.tokenPath, resp.ExpiresAt.Local().Format("Jan 02 15:04"))
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	return cmd
}

func (a *app) readPassword(fromStdin bool) (string, error) {
	if f, ok := a.in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given")
	}
	return password, nil
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.token != "" {
				err := a.client().SignOut(cmd.Context())
				if err != nil && !apiclient.IsUnauthorized(err) {
					return err
				}
			}
			if err := a.clearToken(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "✓ Signed out")
			return nil
		},
	}
}

func meCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireToken(); err != nil {
				return err
			}
			u, err := a.client().Me(cmd.Context())
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan)
			fmt.Fprintln(a.out)
			cyan.Fprintln(a.out, "  Identity")
			cyan.Fprintln(a.out, "  --------")
			fmt.Fprintf(a.out, "  User ID:      %s\n", u.ID)
			fmt.Fprintf(a.out, "  Email:        %s\n", u.Email)
			fmt.Fprintf(a.out, "  Display Name: %s\n", u.DisplayName)
			fmt.Fprintf(a.out, "  Joined:       %s\n", u.CreatedAt.Local().Format("Jan 02, 2006"))
			fmt.Fprintln(a.out)
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and who you are signed in as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)
			yellow := color.New(color.FgYellow)

			fmt.Fprintf(a.out, "  Server:  %s ", a.url)
			if err := c.Health(cmd.Context()); err != nil {
				red.Fprintln(a.out, "[down]")
				return err
			}
			green.Fprintln(a.out, "[up]")

			fmt.Fprint(a.out, "  Session: ")
			if a.token == "" {
				yellow.Fprintln(a.out, "not signed in")
				return nil
			}
			u, err := c.Me(cmd.Context())
			switch {
			case apiclient.IsUnauthorized(err):
				yellow.Fprintln(a.out, "token rejected, sign in again")
			case err != nil:
				return err
			default:
				fmt.Fprintln(a.out, u.Email)
			}
			return nil
		},
	}
}
