package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leavedesk/internal/app"
	"leavedesk/internal/chain"
	"leavedesk/internal/engine"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", engine.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ld",
		Short: "Leavedesk CLI",
		Long: `Leavedesk is a client for the leave management backend.
- Employees apply for leave and follow it through the approval chain.
- Officers see what waits for them as acting, supervising or approval officer and approve or reject it.
- Every action is written to a local activity log, view it with 'ld log tail'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cobra.OnInitialize(initConfig)
	addPersistentFlags(root)

	root.AddCommand(loginCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(whoamiCmd())
	root.AddCommand(dashboardCmd())
	root.AddCommand(entitlementsCmd())
	root.AddCommand(passwordCmd())
	root.AddCommand(leavesCmd())
	root.AddCommand(approvalsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(logCmd())
	root.AddCommand(configCmd())
	root.AddCommand(serveCmd())
	return root
}

// initConfig loads <workspace>/.env before viper reads the environment, so
// LEAVEDESK_* values can live next to the workspace.
func initConfig() {
	_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
	viper.SetEnvPrefix("LEAVEDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("config", "", "config file (default <workspace>/leavedesk.yml)")
	root.PersistentFlags().String("base-url", "", "leave backend base URL (overrides config)")
	root.PersistentFlags().String("log-level", "", "log level (overrides config)")
	root.PersistentFlags().Bool("no-color", false, "plain approval chains")
	for _, name := range []string{"workspace", "json", "config", "base-url", "log-level", "no-color"} {
		_ = viper.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

// --- helpers ---

func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		BaseURL:    viper.GetString("base-url"),
		LogLevel:   viper.GetString("log-level"),
	})
}

func withEngine(ctx context.Context, fn func(context.Context, *app.App, *engine.Engine) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	e := a.Engine()
	defer e.Close()
	return fn(ctx, a, e)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	return tw
}

func chainLine(c chain.Chain) string {
	if viper.GetBool("no-color") {
		return chain.Plain(c)
	}
	return chain.DefaultStyles().Line(c)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// prompt reads one line from in when value is empty. Share in across
// prompts so buffered input is not lost.
func prompt(in *bufio.Reader, out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printOutcome(w io.Writer, out engine.Outcome) error {
	if viper.GetBool("json") {
		return printJSON(w, out)
	}
	fmt.Fprintln(w, out.Message)
	return nil
}
