package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/jwt"
	"github.com/spf13/cobra"
)

func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		secret     string
		userID     string
		email      string
		employeeID string
		admin      bool
		expires    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local use",
		Long:  "Mint an access token signed with the server's JWT secret. Intended for development and operator scripts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return &ExitError{Code: ExitCommandError, Message: "--secret or JWT_SECRET_KEY is required"}
			}

			claims := jwt.AccessClaims{UserID: userID, Email: email, IsAdmin: admin}
			if employeeID != "" {
				claims.EmployeeID = &employeeID
			}

			token, expiresAt, err := jwt.NewJWTService(secret, expires).GenerateAccessToken(claims)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "generating token", Err: err}
			}

			out := tokenOutput{
				AccessToken: token,
				ExpiresAt:   time.Unix(expiresAt, 0).UTC().Format(time.RFC3339),
			}
			if opts.Format == "text" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			}
			return encode(cmd.OutOrStdout(), opts.Format, out)
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET_KEY"), "JWT signing secret")
	cmd.Flags().StringVar(&userID, "user-id", "operator", "user_id claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&employeeID, "employee-id", "", "employee_id claim")
	cmd.Flags().BoolVar(&admin, "admin", true, "is_admin claim")
	cmd.Flags().StringVar(&expires, "expires", "1h", "token lifetime")
	return cmd
}

type tokenOutput struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
	ExpiresAt   string `json:"expires_at" yaml:"expires_at"`
}
