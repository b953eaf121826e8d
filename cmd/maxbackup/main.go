// Command maxbackup is the command-line client for the backup service. It
// opens the local control endpoint, sends one request, and prints responses
// until the final one.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"maxbackup/internal/pipeproto"
)

// version is set at build time.
var version = "dev"

// errRequestFailed marks a conversation whose final response was an error.
var errRequestFailed = errors.New("request failed")

var (
	pipeFlag    string
	timeoutFlag time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "maxbackup",
	Short:         "Control the backup service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var registerCmd = &cobra.Command{
	Use:   "register <sid> <config-path>",
	Short: "Register a user for continuous backup",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(pipeproto.Request{
			Action:     pipeproto.ActionRegister,
			SID:        args[0],
			ConfigPath: args[1],
		})
	},
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister <sid>",
	Short: "Unregister a user and stop their worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(pipeproto.Request{Action: pipeproto.ActionUnregister, SID: args[0]})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <sid>",
	Short: "Show a user's registration and worker state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(pipeproto.Request{Action: pipeproto.ActionStatus, SID: args[0]})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <sid>",
	Short: "Show a user's recent backup runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return converse(pipeproto.Request{Action: pipeproto.ActionHistory, SID: args[0]})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&pipeFlag, "pipe", "MaxBackupPipe", "control endpoint name")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "per read/write timeout")
	rootCmd.AddCommand(registerCmd, unregisterCmd, statusCmd, historyCmd, versionCmd)
}

// converse runs one request/response conversation against the service.
func converse(req pipeproto.Request) error {
	conn, err := dial(pipeFlag, timeoutFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach backup service: %v\n", err)
		return errRequestFailed
	}
	defer conn.Close()

	if err := pipeproto.WriteMessage(conn, timeoutFlag, req); err != nil {
		fmt.Fprintf(os.Stderr, "sending request: %v\n", err)
		return errRequestFailed
	}

	for {
		var resp pipeproto.Response
		if err := pipeproto.ReadMessage(conn, timeoutFlag, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "reading response: %v\n", err)
			return errRequestFailed
		}

		out := os.Stdout
		if resp.Status == pipeproto.StatusError {
			out = os.Stderr
		}
		fmt.Fprintf(out, "[%s] %s\n", resp.Status, resp.Message)
		for _, ve := range resp.ValidationErrors {
			if ve.Job != "" {
				fmt.Fprintf(out, "  job %s, field %s: %s\n", ve.Job, ve.Field, ve.Error)
			} else {
				fmt.Fprintf(out, "  field %s: %s\n", ve.Field, ve.Error)
			}
		}

		if resp.IsFinal {
			if resp.Status == pipeproto.StatusError {
				return errRequestFailed
			}
			return nil
		}
	}
}
