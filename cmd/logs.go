// -- cmd/logs.go --
package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var (
	logsLines  int
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the application log file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.Logger.LogFile
		if path == "" {
			return fmt.Errorf("no log file configured")
		}

		if !logsFollow {
			return printLastLines(cmd, path, logsLines)
		}

		t, err := tail.TailFile(path, tail.Config{
			Follow: true,
			ReOpen: true, // Survive lumberjack rotation.
			Logger: tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tailing %s: %w", path, err)
		}
		defer t.Cleanup()

		for {
			select {
			case line, ok := <-t.Lines:
				if !ok {
					return t.Err()
				}
				fmt.Fprintln(cmd.OutOrStdout(), line.Text)
			case <-cmd.Context().Done():
				return t.Stop()
			}
		}
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing lines to show")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep streaming new lines")
	rootCmd.AddCommand(logsCmd)
}

// printLastLines shows the trailing n lines of a file. Log files are
// rotated well before they outgrow memory, so a full scan is fine here.
func printLastLines(cmd *cobra.Command, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading log file: %w", err)
	}

	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
