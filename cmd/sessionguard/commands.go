package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-session-guard/authapi"
	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/guard"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/spf13/cobra"
)

func loginCmd(c config.Config) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.manager.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m logged in as %s %v\n", user.Username, user.Roles)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func whoamiCmd(c config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			var user authapi.CurrentUser
			if err := a.client.Get(cmd.Context(), c.GetCurrentUserPath(), nil, &user); err != nil {
				return sessionError(err)
			}
			return printJSON(cmd, user)
		},
	}
}

func getCmd(c config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET to the API",
		Long:  `Send an authenticated GET, refreshing the access token first when needed and retrying once after a 401.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid path %q: %w", args[0], err)
			}

			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			var out json.RawMessage
			if err := a.client.Get(cmd.Context(), target.Path, target.Query(), &out); err != nil {
				return sessionError(err)
			}
			return printJSON(cmd, out)
		},
	}
}

func logoutCmd(c config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke and forget the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\033[32m✓\033[0m logged out")
			return nil
		},
	}
}

func checkCmd(c config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check <route>",
		Short: "Report whether the session may open a dashboard route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c)
			if err != nil {
				return err
			}
			defer a.Close()

			decision := a.guard.Check(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], decision)
			if decision != guard.Allow {
				return fmt.Errorf("route %s: %s", args[0], decision)
			}
			return nil
		},
	}
}

// sessionError tells the user how to recover when the session could not be kept alive.
func sessionError(err error) error {
	switch {
	case errors.Is(err, client.ErrAuthenticationRequired), errors.Is(err, client.ErrRefreshFailed), errors.Is(err, client.ErrReplayFailed):
		return fmt.Errorf("%w (run `sessionguard login`)", err)
	}
	return err
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
