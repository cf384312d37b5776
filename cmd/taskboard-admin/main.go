// ABOUTME: Admin CLI for a running taskboard server
// ABOUTME: Cobra commands over the JSON API with token storage under the config dir

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/taskboard/internal/apiclient"
)

var version = "dev"

const banner = `
  _            _    _                         _            _           _
 | |_ __ _ ___| | _| |__   ___   __ _ _ __ __| |  __ _  __| |_ __ ___ (_)_ __
 | __/ _' / __| |/ / '_ \ / _ \ / _' | '__/ _' | / _' |/ _' | '_ ' _ \| | '_ \
 | || (_| \__ \   <| |_) | (_) | (_| | | | (_| || (_| | (_| | | | | | | | | | |
  \__\__,_|___/_|\_\_.__/ \___/ \__,_|_|  \__,_(_)__,_|\__,_|_| |_| |_|_|_| |_|
`

const defaultURL = "http://127.0.0.1:8080"

// app carries what every command needs. Tests swap the streams and paths.
type app struct {
	url       string
	token     string
	tokenPath string
	in        io.Reader
	out       io.Writer
}

func (a *app) client() *apiclient.Client {
	return apiclient.New(a.url, a.token)
}

// requireToken fails early with a hint when no token is known.
func (a *app) requireToken() error {
	if a.token == "" {
		return fmt.Errorf("not signed in\nHint: run 'taskboard-admin login --email you@example.com' or set TASKBOARD_TOKEN")
	}
	return nil
}

func (a *app) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(a.tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	a.token = token
	return nil
}

func (a *app) clearToken() error {
	a.token = ""
	if err := os.Remove(a.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// defaultTokenPath is the file `taskboard useradd` and `login` write.
func defaultTokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "taskboard", "token")
}

func readToken(path string) string {
	if token := os.Getenv("TASKBOARD_TOKEN"); token != "" {
		return token
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func defaultServerURL() string {
	if u := os.Getenv("TASKBOARD_URL"); u != "" {
		return u
	}
	return defaultURL
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskboard-admin",
		Short:         "Manage projects and tasks on a taskboard server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: color.CyanString(banner) + `
taskboard-admin talks to a running taskboard server over its JSON API.

Environment:
  TASKBOARD_URL     Server URL (default: ` + defaultURL + `)
  TASKBOARD_TOKEN   Bearer token (default: read from the token file)`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.token == "" {
				a.token = readToken(a.tokenPath)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.url, "url", a.url, "server URL")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token")

	root.AddCommand(loginCmd(a))
	root.AddCommand(logoutCmd(a))
	root.AddCommand(meCmd(a))
	root.AddCommand(statusCmd(a))
	root.AddCommand(projectsCmd(a))
	root.AddCommand(tasksCmd(a))
	root.AddCommand(chatCmd(a))
	return root
}

func main() {
	a := &app{
		url:       defaultServerURL(),
		tokenPath: defaultTokenPath(),
		in:        os.Stdin,
		out:       os.Stdout,
	}
	root := newRootCmd(a)
	root.SetOut(a.out)

	if err := root.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
