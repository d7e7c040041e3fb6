package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/go-csp/internal/auth"
	"github.com/redmonkez12/go-csp/internal/config"
	"github.com/redmonkez12/go-csp/internal/csp"
	"github.com/redmonkez12/go-csp/internal/useragent"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "cspctl",
		Short:        "Inspect Content-Security-Policy headers",
		SilenceUsage: true,
	}

	headersCmd := &cobra.Command{
		Use:   "headers",
		Short: "Show the CSP headers a user agent would receive",
		RunE:  runHeaders,
	}
	headersCmd.Flags().String("ua", "", "User-Agent string (empty means unknown browser)")
	headersCmd.Flags().String("directives", "", "Policy, e.g. \"default-src self; script-src self @nonce\" (defaults to CSP_DIRECTIVES)")
	headersCmd.Flags().String("nonce", "", "Nonce substituted for @nonce")
	headersCmd.Flags().Bool("report-only", false, "Emit -Report-Only headers")
	headersCmd.Flags().Bool("all", false, "Emit every known header regardless of browser")
	headersCmd.Flags().Bool("disable-android", false, "Disable CSP for the stock Android browser")

	directivesCmd := &cobra.Command{
		Use:   "directives",
		Short: "List the supported directives",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range csp.AllowedDirectives() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the report listing (uses PASETO_KEY)",
		RunE:  runToken,
	}
	tokenCmd.Flags().String("subject", "", "Token subject, e.g. an operator name")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to TOKEN_DURATION)")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(headersCmd, directivesCmd, tokenCmd)
	return rootCmd
}

func runHeaders(cmd *cobra.Command, args []string) error {
	ua, _ := cmd.Flags().GetString("ua")
	policy, _ := cmd.Flags().GetString("directives")
	nonce, _ := cmd.Flags().GetString("nonce")
	reportOnly, _ := cmd.Flags().GetBool("report-only")
	all, _ := cmd.Flags().GetBool("all")
	disableAndroid, _ := cmd.Flags().GetBool("disable-android")

	var directives csp.Directives
	if policy != "" {
		parsed, err := csp.ParseDirectives(policy)
		if err != nil {
			return err
		}
		directives = parsed
	} else {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		directives = cfg.CSP.Directives
	}

	browser := useragent.NewParser().Parse(ua)
	headers, err := csp.Build(browser, directives, csp.Options{
		SetAllHeaders:  all,
		ReportOnly:     reportOnly,
		DisableAndroid: disableAndroid,
		Nonce:          nonce,
	})
	if err != nil {
		return err
	}

	printHeaders(cmd.OutOrStdout(), browser, headers)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Auth.OperatorEndpointsEnabled() {
		return fmt.Errorf("PASETO_KEY is not set")
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenDuration
	}

	tokens, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
	if err != nil {
		return err
	}
	token, err := tokens.CreateToken(subject, auth.ScopeReadReports, ttl)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.Render("expires "+time.Now().Add(ttl).Format(time.RFC3339)))
	return nil
}

func printHeaders(w io.Writer, browser *csp.Browser, headers csp.Headers) {
	fmt.Fprintln(w, titleStyle.Render("Browser: "+describe(browser)))

	if len(headers) == 0 {
		fmt.Fprintln(w, warnStyle.Render("no CSP headers (unsupported browser or empty policy)"))
		return
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", headerStyle.Render(name), headers[name])
	}
}

func describe(b *csp.Browser) string {
	if b == nil {
		return "unknown"
	}
	parts := []string{b.Name}
	if b.Version != "" {
		parts = append(parts, b.Version)
	}
	if b.OS != nil {
		parts = append(parts, "on", b.OS.Family, b.OS.Version)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
