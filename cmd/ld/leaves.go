package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leavedesk/internal/app"
	"leavedesk/internal/domain"
	"leavedesk/internal/engine"
)

func leavesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaves",
		Short: "Your own leave requests",
	}
	cmd.AddCommand(leavesMineCmd())
	cmd.AddCommand(leavesSubmitCmd())
	cmd.AddCommand(leavesCancelCmd())
	return cmd
}

func leavesMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your leave requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				leaves, err := e.MyLeaves(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), leaves)
				}
				tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Type", "Start", "End", "Duration", "Status", "Chain"})
				for _, l := range leaves {
					tw.AppendRow(table.Row{l.ID, l.Type, fmtDate(l.Start), fmtDate(l.End), domain.Duration(l), l.Status.Label(), chainLine(e.Chain(l))})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func leavesSubmitCmd() *cobra.Command {
	var req engine.SubmitRequest
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Apply for leave",
		Long:  "Validates the request locally and with the backend, then submits it. Officer emails left empty are sent as NONE.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				out, err := e.Submit(ctx, req)
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), out)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.LeaveType, "type", "", "CASUAL, SICK, DUTY, MATERNITY, SHORT or HALF_DAY")
	f.StringVar(&req.StartDate, "start", "", "start date (YYYY-MM-DD)")
	f.StringVar(&req.EndDate, "end", "", "end date (YYYY-MM-DD)")
	f.StringVar(&req.Reason, "reason", "", "reason")
	f.StringVar(&req.ActingOfficerEmail, "acting", "", "acting officer email")
	f.StringVar(&req.SupervisingOfficerEmail, "supervising", "", "supervising officer email")
	f.StringVar(&req.ApprovalOfficerEmail, "approval", "", "approval officer email")
	f.StringVar(&req.HalfDayPeriod, "period", "", "half day period (MORNING or EVENING)")
	f.StringVar(&req.ShortLeaveStartTime, "from", "", "short leave start (HH:MM)")
	f.StringVar(&req.ShortLeaveEndTime, "to", "", "short leave end (HH:MM)")
	f.StringVar(&req.MaternityLeaveType, "maternity-type", "", "maternity leave category")
	f.StringVar(&req.MaternityPaymentType, "maternity-payment", "", "maternity payment type")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func leavesCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel one of your leave requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				l, err := e.FindMine(ctx, domain.ID(args[0]))
				if err != nil {
					return err
				}
				out, err := e.Cancel(ctx, l, reason)
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

type listFlags struct {
	page     int
	pageSize int
	filter   engine.Filter
}

func (lf *listFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&lf.page, "page", 1, "page number")
	f.IntVar(&lf.pageSize, "page-size", 0, "rows per page (default views.page_size)")
	f.StringVarP(&lf.filter.Query, "query", "q", "", "search name, email, reason or type")
	f.StringVar(&lf.filter.LeaveType, "type", "", "leave type filter")
	f.StringVar(&lf.filter.Status, "status", "", "status prefix filter, e.g. PENDING or REJECTED")
	f.StringVar(&lf.filter.Role, "role", "", "officer role filter (acting, supervising, approval)")
}

func (lf *listFlags) paginate(a *app.App, items []engine.Item) engine.Page[engine.Item] {
	return engine.Of(engine.Resume(lf.page, lf.pageSize, 0, a.Config.Views.PageSize), lf.filter.Apply(items))
}

func printFailures(w io.Writer, failures []engine.RoleFailure) {
	for _, f := range failures {
		fmt.Fprintf(w, "warning: could not load %s list: %s\n", f.Role.Label(), engine.UserMessage(f.Err))
	}
}

func printPageFooter(w io.Writer, p engine.Page[engine.Item]) {
	fmt.Fprintf(w, "page %d of %d (%d total)\n", p.Page, max(p.TotalPages, 1), p.Total)
}

func approvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Leaves waiting for you as an officer",
	}
	cmd.AddCommand(approvalsListCmd())
	cmd.AddCommand(actionCmd(engine.ActionApprove))
	cmd.AddCommand(actionCmd(engine.ActionReject))
	return cmd
}

func approvalsListCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending approvals across all officer roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, a *app.App, e *engine.Engine) error {
				res, err := e.Pending(ctx)
				if err != nil {
					return err
				}
				p := lf.paginate(a, res.Items)
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{"page": p, "failures": res.Failures})
				}
				printFailures(cmd.ErrOrStderr(), res.Failures)
				tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Employee", "Type", "Start", "Duration", "Role", "Received", "Chain"})
				for _, it := range p.Items {
					tw.AppendRow(table.Row{it.ID, it.EmployeeName, it.Type, fmtDate(it.Start), domain.Duration(it.Leave), it.RoleLabel, fmtDate(it.SortKey), chainLine(e.Chain(it.Leave))})
				}
				tw.Render()
				printPageFooter(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	lf.bind(cmd)
	return cmd
}

func actionCmd(action string) *cobra.Command {
	var comments string
	verb := "approve"
	if action == engine.ActionReject {
		verb = "reject"
	}
	cmd := &cobra.Command{
		Use:   verb + " <id>",
		Short: fmt.Sprintf("%s a pending leave at your officer level", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, _ *app.App, e *engine.Engine) error {
				l, err := e.FindPending(ctx, domain.ID(args[0]))
				if err != nil {
					return err
				}
				out, err := e.Act(ctx, l, action, comments)
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "comments for the employee")
	return cmd
}

func historyCmd() *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Leaves you already acted on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, a *app.App, e *engine.Engine) error {
				res, err := e.History(ctx)
				if err != nil {
					return err
				}
				p := lf.paginate(a, res.Items)
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{"page": p, "failures": res.Failures})
				}
				printFailures(cmd.ErrOrStderr(), res.Failures)
				tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Employee", "Type", "Duration", "Role", "Action", "Action Date", "Status"})
				for _, it := range p.Items {
					tw.AppendRow(table.Row{it.ID, it.EmployeeName, it.Type, domain.Duration(it.Leave), it.RoleLabel, it.ActionTaken, fmtDate(it.ActionDate), it.Status.Label()})
				}
				tw.Render()
				printPageFooter(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	lf.bind(cmd)
	return cmd
}
