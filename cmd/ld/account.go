package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leavedesk/internal/app"
	"leavedesk/internal/engine"
)

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the leave backend",
		Long:  "Exchanges email and password for a token and keeps it in the workspace until logout or expiry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email, err = prompt(in, cmd.ErrOrStderr(), "Email", email); err != nil {
				return err
			}
			if password == "" {
				password = viper.GetString("password")
			}
			if password, err = prompt(in, cmd.ErrOrStderr(), "Password", password); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, a *app.App, e *engine.Engine) error {
				res, err := e.Login(ctx, email, password)
				if err != nil {
					return err
				}
				if err := a.Session.Save(ctx, res.Token, strings.TrimSpace(email), res.Roles); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"email":      a.Session.UserEmail(),
						"roles":      a.Session.Roles(),
						"expires_at": a.Session.ExpiresAt(),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.Session.UserEmail())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (or LEAVEDESK_PASSWORD; prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				if err := e.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, a *app.App, e *engine.Engine) error {
				u, err := e.Me(ctx)
				if err != nil {
					return err
				}
				roles := a.Session.Roles()
				if len(u.Roles) > 0 {
					roles = u.Roles
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"email":       u.Email,
						"name":        u.Name,
						"designation": u.Designation,
						"roles":       roles,
						"expires_at":  a.Session.ExpiresAt(),
					})
				}
				expires := "-"
				if t := a.Session.ExpiresAt(); t != nil {
					expires = t.Local().Format("2006-01-02 15:04")
				}
				tw := newTable(cmd.OutOrStdout(), table.Row{"Email", "Name", "Designation", "Roles", "Session Expires"})
				tw.AppendRow(table.Row{u.Email, u.Name, u.Designation, strings.Join(roles, ", "), expires})
				tw.Render()
				return nil
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Pending counts per officer role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				c, err := e.Dashboard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), c)
				}
				tw := newTable(cmd.OutOrStdout(), table.Row{"Acting", "Supervising", "Approval", "Total"})
				tw.AppendRow(table.Row{c.Acting, c.Supervising, c.Approval, c.Total})
				tw.Render()
				return nil
			})
		},
	}
}

func entitlementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entitlements",
		Short: "Leave balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				b, err := e.Entitlements(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), b)
				}
				tw := newTable(cmd.OutOrStdout(), table.Row{"Type", "Total", "Used", "Remaining"})
				for _, ent := range b.Entitlements {
					tw.AppendRow(table.Row{ent.LeaveType, ent.Total, ent.Used, ent.Remaining})
				}
				if s := b.ShortLeave; s != nil {
					tw.AppendFooter(table.Row{"SHORT (month)", s.Total, s.Used, s.Remaining})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func passwordCmd() *cobra.Command {
	var p engine.PasswordChange
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if p.Old, err = prompt(in, cmd.ErrOrStderr(), "Current password", p.Old); err != nil {
				return err
			}
			if p.New, err = prompt(in, cmd.ErrOrStderr(), "New password", p.New); err != nil {
				return err
			}
			if p.Confirm, err = prompt(in, cmd.ErrOrStderr(), "Confirm new password", p.Confirm); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				out, err := e.ChangePassword(ctx, p)
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&p.Old, "old", "", "current password")
	cmd.Flags().StringVar(&p.New, "new", "", "new password")
	cmd.Flags().StringVar(&p.Confirm, "confirm", "", "new password again")
	return cmd
}
