package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-invoice/pkg/client"
)

func newRegisterCommand(a *app) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and start a session",
		Example: `  invoicectl register --name "Ada Lovelace" --email ada@example.com --password s3cret!
  INVOICE_PASSWORD=s3cret! invoicectl register --name Ada --email ada@example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password = passwordOrEnv(password)
			if name == "" || email == "" || password == "" {
				return errors.New("--name, --email and --password are required")
			}

			user, err := a.client.Register(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			fmt.Fprintf(a.out, "Registered and logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or INVOICE_PASSWORD)")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Log in and store the session",
		Example: `  invoicectl login --email ada@example.com --password s3cret!`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password = passwordOrEnv(password)
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}

			user, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				if client.IsAuth(err) {
					return errors.New("login failed: invalid email or password")
				}
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(a.out, "Logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or INVOICE_PASSWORD)")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				fmt.Fprintf(a.out, "Local session cleared (server revoke failed: %v)\n", err)
				return nil
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			user, err := client.Retry(cmd.Context(), client.DefaultRetryPolicy(), a.client.Me)
			if err != nil {
				return sessionError(err)
			}

			fmt.Fprintf(a.out, "%s <%s> (id %s)\n", user.Name, user.Email, user.ID)
			return nil
		},
	}
}

func passwordOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("INVOICE_PASSWORD")
}

// sessionError rewrites auth failures into a prompt to log in again.
func sessionError(err error) error {
	if client.IsAuth(err) {
		return fmt.Errorf("session ended (%v); run `invoicectl login` again", err)
	}
	return err
}
