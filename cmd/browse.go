// -- cmd/browse.go --
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webbridge/webbridge-cli/internal/browser"
	"github.com/webbridge/webbridge-cli/internal/netlog"
	"github.com/webbridge/webbridge-cli/internal/observability"
	"github.com/webbridge/webbridge-cli/internal/session"
)

var (
	browseClicks       []string
	browseFills        []string
	browseScreenshot   string
	browseSaveSession  string
	browseLoadSession  string
	browseAutoNavigate bool
	browseHARPath      string
	browseSummary      bool
)

var browseCmd = &cobra.Command{
	Use:   "browse [url]",
	Short: "Drive a headless browser: navigate, interact, capture and persist state",
	Long: `Browse opens a headless browser tab, optionally restores a saved session,
navigates, performs interactions, and can persist the resulting session,
a screenshot and the recorded network traffic.

With --load-session and --auto-navigate the tab returns to the page that
was open when the session was saved; an explicit url argument overrides it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()
		recorder := netlog.NewRecorder(appConfig.Recorder, logger)

		store, err := sessionStore()
		if err != nil {
			return err
		}

		var restored session.Record
		haveRestored := false
		if browseLoadSession != "" {
			restored, err = store.Load(browseLoadSession)
			if err != nil {
				return err
			}
			haveRestored = true
		}

		mgr, err := browser.NewManager(ctx, appConfig.Browser, logger, recorder)
		if err != nil {
			return err
		}
		defer mgr.Close()

		if haveRestored {
			if err := mgr.SetCookies(ctx, restored.Cookies); err != nil {
				return err
			}
		}

		// Resolve where to go: an explicit URL wins over the restored page.
		target := ""
		if len(args) == 1 {
			target = args[0]
		} else if browseAutoNavigate && haveRestored {
			target = restored.CurrentURL
		}
		if target == "" && !haveRestored {
			return fmt.Errorf("a url argument is required unless --load-session is given")
		}

		if target != "" {
			nav, err := mgr.Navigate(ctx, target)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, nav); err != nil {
				return err
			}
		}

		for _, f := range browseFills {
			selector, value, ok := strings.Cut(f, "=")
			if !ok {
				return fmt.Errorf("invalid --fill %q, want selector=value", f)
			}
			if err := mgr.Fill(ctx, selector, value); err != nil {
				return err
			}
		}
		for _, selector := range browseClicks {
			if err := mgr.Click(ctx, selector); err != nil {
				return err
			}
		}

		if browseScreenshot != "" {
			path, err := mgr.Screenshot(ctx, browseScreenshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Screenshot: %s\n", path)
		}

		if browseSaveSession != "" {
			cookies, err := mgr.Cookies(ctx)
			if err != nil {
				return err
			}
			currentURL, err := mgr.CurrentURL(ctx)
			if err != nil {
				return err
			}
			rec, err := store.Save(browseSaveSession, cookies, currentURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %q saved (%d cookies, %d domains).\n",
				rec.Name, rec.CookieCount, len(rec.Domains))
		}

		if browseSummary {
			if err := printJSON(cmd, recorder.Summary()); err != nil {
				return err
			}
		}
		return writeHAR(recorder, browseHARPath)
	},
}

func init() {
	browseCmd.Flags().StringArrayVar(&browseClicks, "click", nil, "CSS selector to click (repeatable, after fills)")
	browseCmd.Flags().StringArrayVar(&browseFills, "fill", nil, "form fill, selector=value (repeatable)")
	browseCmd.Flags().StringVar(&browseScreenshot, "screenshot", "", "capture a full-page screenshot under this name")
	browseCmd.Flags().StringVar(&browseSaveSession, "save-session", "", "persist cookies and location under this session name")
	browseCmd.Flags().StringVar(&browseLoadSession, "load-session", "", "restore cookies from this saved session first")
	browseCmd.Flags().BoolVar(&browseAutoNavigate, "auto-navigate", false, "return to the restored session's page when no url is given")
	browseCmd.Flags().StringVar(&browseHARPath, "har", "", "export the recorded traffic as HAR to this path")
	browseCmd.Flags().BoolVar(&browseSummary, "network", false, "print a network traffic summary")

	rootCmd.AddCommand(browseCmd)
}
