package main

import (
	"fmt"

	"tfsrentals/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	userName  string
	userAdmin bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <email> <password>",
	Short: "Create a customer or admin account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, deps, done, err := env(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		role := domain.RoleUser
		if userAdmin {
			role = domain.RoleAdmin
		}
		name := userName
		if name == "" {
			name = args[0]
		}
		u, err := deps.Auth.CreateUser(cmd.Context(), args[0], name, role, args[1])
		if err != nil {
			return err
		}
		logger().Info("user created", zap.String("user_id", u.ID), zap.String("role", u.Role))
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", u.ID, u.Email, u.Role)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete an account with its carts and sessions",
	Long: `Delete an account with its carts and sessions. Quotes are kept for the
rental desk but detached from the account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, deps, done, err := env(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		if err := deps.Auth.DeleteUser(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		logger().Info("user deleted", zap.String("email", args[0]))
		return nil
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userName, "name", "", "display name (defaults to the email)")
	usersAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant the admin role")
	usersCmd.AddCommand(usersAddCmd, usersDeleteCmd)
}
