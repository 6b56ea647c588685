// -- cmd/fetch.go --
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webbridge/webbridge-cli/internal/fetch"
	"github.com/webbridge/webbridge-cli/internal/netlog"
	"github.com/webbridge/webbridge-cli/internal/observability"
)

var (
	fetchHeaders   []string
	fetchProxy     string
	fetchVerifyTLS bool
	fetchAsJSON    bool
	fetchOutput    string
	fetchHARPath   string

	downloadQuiet bool

	batchHARPath string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a URL with retries and classified failures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		recorder := netlog.NewRecorder(appConfig.Recorder, logger)

		engine, err := fetch.NewEngine(appConfig.Fetcher, logger, recorder)
		if err != nil {
			return err
		}

		req := fetch.Request{URL: args[0], Headers: parseHeaderFlags(fetchHeaders), Proxy: fetchProxy}
		if cmd.Flags().Changed("verify-tls") {
			req.VerifyTLS = &fetchVerifyTLS
		}

		var res fetch.Result
		if fetchAsJSON {
			res = engine.FetchJSON(cmd.Context(), req)
		} else {
			res = engine.Fetch(cmd.Context(), req)
		}

		if fetchOutput != "" && res.Success {
			if err := os.WriteFile(fetchOutput, []byte(res.Content), 0o644); err != nil {
				return fmt.Errorf("writing body to %s: %w", fetchOutput, err)
			}
			// Keep stdout readable when the body went to a file.
			res.Content = ""
		}

		if err := printJSON(cmd, res); err != nil {
			return err
		}
		if err := writeHAR(recorder, fetchHARPath); err != nil {
			return err
		}
		if !res.Success {
			// The failure is already reported in the result; a non-zero exit
			// is enough without a second error line.
			observability.Sync()
			os.Exit(1)
		}
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <url> [dest]",
	Short: "Stream a URL to disk with retry and progress reporting",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		engine, err := fetch.NewEngine(appConfig.Fetcher, logger, nil)
		if err != nil {
			return err
		}

		dest := destPath(args)
		if dir := filepath.Dir(dest); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating download directory: %w", err)
			}
		}

		req := fetch.DownloadRequest{
			Request: fetch.Request{URL: args[0], Proxy: fetchProxy},
			Dest:    dest,
		}
		var bar *progressBar
		if !downloadQuiet {
			bar = newProgressBar(cmd.OutOrStdout(), filepath.Base(dest))
			req.Progress = bar.update
		}

		res := engine.Download(cmd.Context(), req)
		if bar != nil {
			bar.finish()
		}

		if err := printJSON(cmd, res); err != nil {
			return err
		}
		if !res.Success {
			observability.Sync()
			os.Exit(1)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <url>...",
	Short: "Fetch many URLs concurrently, reporting per-URL outcomes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		recorder := netlog.NewRecorder(appConfig.Recorder, logger)

		engine, err := fetch.NewEngine(appConfig.Fetcher, logger, recorder)
		if err != nil {
			return err
		}

		coordinator := fetch.NewBatchCoordinator(engine, appConfig.Fetcher.BatchConcurrency, logger)
		results := coordinator.FetchAll(cmd.Context(), args)

		// Bodies are dropped from batch output; per-URL status is the point.
		for i := range results {
			results[i].Content = ""
			results[i].JSON = nil
		}
		if err := printJSON(cmd, results); err != nil {
			return err
		}
		if err := writeHAR(recorder, batchHARPath); err != nil {
			return err
		}

		for _, r := range results {
			if !r.Success {
				observability.Sync()
				os.Exit(1)
			}
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "extra request header, name=value (repeatable)")
	fetchCmd.Flags().StringVar(&fetchProxy, "proxy", "", "proxy endpoint override for this fetch")
	fetchCmd.Flags().BoolVar(&fetchVerifyTLS, "verify-tls", false, "verify the server certificate for this fetch")
	fetchCmd.Flags().BoolVar(&fetchAsJSON, "json", false, "parse the body as JSON")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write the body to a file instead of stdout")
	fetchCmd.Flags().StringVar(&fetchHARPath, "har", "", "export the recorded traffic as HAR to this path")

	downloadCmd.Flags().StringVar(&fetchProxy, "proxy", "", "proxy endpoint override")
	downloadCmd.Flags().BoolVarP(&downloadQuiet, "quiet", "q", false, "suppress the progress bar")

	batchCmd.Flags().StringVar(&batchHARPath, "har", "", "export the recorded traffic as HAR to this path")

	rootCmd.AddCommand(fetchCmd, downloadCmd, batchCmd)
}

// parseHeaderFlags turns repeated name=value flags into a header map.
func parseHeaderFlags(flags []string) map[string]string {
	if len(flags) == 0 {
		return nil
	}
	headers := make(map[string]string, len(flags))
	for _, f := range flags {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = parts[1]
		}
	}
	return headers
}

// destPath resolves the download destination: an explicit second argument
// wins, otherwise the URL's basename lands in the configured download dir.
func destPath(args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	base := filepath.Base(strings.SplitN(args[0], "?", 2)[0])
	if base == "." || base == "/" || base == "" {
		base = "download"
	}
	return filepath.Join(appConfig.Fetcher.DownloadDir, base)
}

// printJSON writes a result to stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// writeHAR exports the recorder's trace when a path was requested.
func writeHAR(recorder *netlog.Recorder, path string) error {
	if path == "" {
		return nil
	}
	data, err := recorder.ExportTrace()
	if err != nil {
		return fmt.Errorf("exporting HAR: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing HAR to %s: %w", path, err)
	}
	observability.GetLogger().Info("HAR trace written", zap.String("path", path))
	return nil
}
