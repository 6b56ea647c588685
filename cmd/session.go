// -- cmd/session.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webbridge/webbridge-cli/internal/observability"
	"github.com/webbridge/webbridge-cli/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved browser sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore()
		if err != nil {
			return err
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var sessionInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show a saved session's metadata and cookies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore()
		if err != nil {
			return err
		}
		rec, err := store.Load(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sessionStore()
		if err != nil {
			return err
		}
		deleted, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "Session %q deleted.\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Session %q does not exist.\n", args[0])
		}
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionInfoCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionStore() (*session.Store, error) {
	return session.NewStore(appConfig.Session.Dir, observability.GetLogger())
}
