// Package app wires configuration, the Falcon client and the action registry
// into the command line and the serve mode.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/auth"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/utils"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/config"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/handlers"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// errReported marks a failure whose JSON error envelope was already printed
var errReported = fmt.Errorf("action failed")

// Execute runs the root command and returns the process exit code
func Execute() int {
	return runArgs(os.Args[1:], os.Stdout, os.Stderr)
}

func runArgs(args []string, stdout, stderr io.Writer) int {
	root, s := newRootCommand()
	defer s.close()

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if err != errReported {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// session holds what PersistentPreRunE opens. close runs whether or not the
// command failed, since cobra skips post-run hooks after a RunE error.
type session struct {
	logCloser io.Closer
}

func (s *session) open() error {
	// A missing .env file is fine
	_ = godotenv.Load()

	closer, err := logging.InitGlobalLogger()
	if err != nil {
		return err
	}
	s.logCloser = closer
	return nil
}

func (s *session) close() {
	logging.MustSync()
	if s.logCloser != nil {
		_ = s.logCloser.Close()
		s.logCloser = nil
	}
}

// newRootCommand builds the command tree; the caller must close the session
func newRootCommand() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:           "falcon-connector",
		Short:         "Run CrowdStrike Falcon response actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open()
		},
	}

	root.AddCommand(
		newRunCommand(),
		newActionsCommand(),
		newServeCommand(),
		newTokenCommand(),
		newVersionCommand(),
	)
	return root, s
}

func newRunCommand() *cobra.Command {
	var argsJSON, argsFile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <action>",
		Short: "Run one action and print its result as JSON",
		Long: `Runs a single action with JSON arguments and prints {"result": ...}
on success or {"error": {...}} on failure. The exit status is non-zero on failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			raw, err := readArgs(cmd.InOrStdin(), argsJSON, argsFile)
			if err != nil {
				return report(out, err)
			}

			app, err := New(config.Load())
			if err != nil {
				return report(out, err)
			}
			defer app.Cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := app.Runner.Run(ctx, args[0], raw)
			if err != nil {
				return report(out, err)
			}
			return printJSON(out, handlers.Response{Result: result})
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "action arguments as a JSON object")
	cmd.Flags().StringVar(&argsFile, "args-file", "", `file holding the JSON arguments ("-" for stdin)`)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline for the action (0 for none)")
	cmd.MarkFlagsMutuallyExclusive("args", "args-file")
	return cmd
}

func newActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the available actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Listing needs no credentials
			cfg := config.Load()
			if cfg.Falcon.ClientID == "" {
				cfg.Falcon.ClientID = "unset"
			}
			if cfg.Falcon.ClientSecret == "" {
				cfg.Falcon.ClientSecret = "unset"
			}

			app, err := New(cfg)
			if err != nil {
				return err
			}
			defer app.Cleanup()

			for _, name := range app.Runner.Names() {
				action, err := app.Runner.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-34s %s\n", name, action.Description())
			}
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	var tlsCert, tlsKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the actions over HTTP",
		Long: `Serves POST /actions/{name}, GET /actions and GET /health.
When API_JWT_SECRET is set, action routes require an HS256 bearer token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := New(config.Load())
			if err != nil {
				logging.Error("Configuration validation failed", err)
				return err
			}
			defer app.Cleanup()

			router, err := app.Router()
			if err != nil {
				return err
			}

			logging.Info("Starting Falcon connector",
				logging.Field{Key: "version", Value: config.Version},
				logging.Field{Key: "port", Value: app.Config.Port},
				logging.Field{Key: "base_url", Value: app.Config.Falcon.BaseURL},
				logging.Field{Key: "auth", Value: app.Auth != nil},
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.New(router, app.Config.Port, tlsCert, tlsKey).Run(ctx); err != nil {
				logging.Error("Server failed", err)
				return err
			}
			logging.Info("Server exited")
			return nil
		},
	}

	cmd.Flags().StringVar(&tlsCert, "tls-cert", os.Getenv("TLS_CERT_FILE"), "TLS certificate file")
	cmd.Flags().StringVar(&tlsKey, "tls-key", os.Getenv("TLS_KEY_FILE"), "TLS private key file")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var user, ttl string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the serve mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := auth.New(config.Load().JWTSecret)
			if err != nil {
				return fmt.Errorf("API_JWT_SECRET must be set: %w", err)
			}
			lifetime, err := utils.ParseDuration(ttl)
			if err != nil {
				return fmt.Errorf("invalid --ttl: %w", err)
			}
			token, err := a.Issue(user, lifetime)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "caller identity recorded in the token")
	cmd.Flags().StringVar(&ttl, "ttl", "1d", `token lifetime ("12h", "7d", "2w")`)
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "falcon-connector version %s\n", config.Version)
		},
	}
}

// readArgs returns the raw JSON arguments from --args, --args-file or nothing
func readArgs(stdin io.Reader, argsJSON, argsFile string) (json.RawMessage, error) {
	var raw []byte
	switch {
	case argsFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.InvalidArgumentError(fmt.Sprintf("failed to read arguments from stdin: %v", err))
		}
		raw = data
	case argsFile != "":
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return nil, errors.InvalidArgumentError(fmt.Sprintf("failed to read arguments file: %v", err))
		}
		raw = data
	default:
		raw = []byte(argsJSON)
	}

	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.InvalidArgumentError("arguments are not valid JSON")
	}
	return raw, nil
}

func report(out io.Writer, err error) error {
	if printErr := printJSON(out, handlers.Response{Error: handlers.NewErrorBody(err)}); printErr != nil {
		return printErr
	}
	return errReported
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
