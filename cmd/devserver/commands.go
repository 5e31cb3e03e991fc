package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/devserver"
	"github.com/loykin/devserver/internal/history"
	"github.com/loykin/devserver/internal/logger"
	"github.com/loykin/devserver/pkg/client"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// UpFlags holds flags for the up command.
type UpFlags struct {
	ConfigPath string
	APIAddr    string
	APIBase    string
	Verbose    bool
}

// RemoteFlags holds flags for commands that talk to a running controller.
type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "devserver",
		Short:         "Start servers for a test session, wait for readiness, tear them down",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newUpCmd(), newStatusCmd(), newDownCmd(), newVersionCmd())
	return root
}

func newUpCmd() *cobra.Command {
	var f UpFlags
	cmd := &cobra.Command{
		Use:   "up --config file.toml [--api addr] [-- test-command args...]",
		Short: "Bring up all configured servers, optionally run a command, then tear down",
		Long: `Reads the TOML session definition, brings every server up and waits for
readiness. With a trailing command (after --), runs it once all servers are
ready, tears everything down and exits with the command's exit code. Without
one, serves until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(f, args)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "TOML session definition (required)")
	cmd.Flags().StringVar(&f.APIAddr, "api", "", "serve the status API on this address (overrides [http] in config)")
	cmd.Flags().StringVar(&f.APIBase, "api-base", "", "base path for the status API")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runUp(f UpFlags, testCmd []string) error {
	level := slog.LevelInfo
	if f.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(logger.NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	fc, err := devserver.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var sinks history.Multi
	if fc.History != nil {
		for _, dsn := range fc.History.DSNs {
			s, err := devserver.NewSinkFromDSN(dsn)
			if err != nil {
				return fmt.Errorf("history sink %q: %w", dsn, err)
			}
			sinks = append(sinks, s)
		}
	}
	var sink history.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	if err := devserver.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mgr := devserver.NewWithOptions(devserver.Options{Logger: log, Sink: sink})
	globalEnv, err := fc.GlobalEnv()
	if err != nil {
		return fmt.Errorf("global env: %w", err)
	}
	mgr.SetGlobalEnv(globalEnv)

	apiAddr, apiBase := f.APIAddr, f.APIBase
	if apiAddr == "" && fc.HTTP != nil {
		apiAddr = fc.HTTP.Listen
		if apiBase == "" {
			apiBase = fc.HTTP.BasePath
		}
	}
	if apiAddr != "" {
		srv, err := devserver.NewHTTPServer(apiAddr, apiBase, mgr)
		if err != nil {
			return fmt.Errorf("status api: %w", err)
		}
		defer func() { _ = srv.Close() }()
		log.Info("status api listening", "addr", apiAddr, "base", apiBase)
	}

	// Route signals through the shared exit hook so graceful teardown and the
	// post command run before the force-kill sweep and the 128+sig exit.
	done := make(chan struct{})
	devserver.OnShutdown(func(s os.Signal) {
		log.Info("shutting down", "signal", s.String())
		mgr.Teardown(context.Background(), fc.PostTeardown)
		close(done)
	})

	ctx := context.Background()
	if err := mgr.Setup(ctx, fc.Servers...); err != nil {
		mgr.Teardown(ctx, fc.PostTeardown)
		return fmt.Errorf("setup: %w", err)
	}
	log.Info("all servers ready", "count", len(fc.Servers))

	if len(testCmd) > 0 {
		code := runTestCommand(log, testCmd)
		mgr.Teardown(ctx, fc.PostTeardown)
		os.Exit(code)
	}

	<-done
	return nil
}

// runTestCommand executes the user's command with inherited stdio and returns
// the exit code to propagate.
func runTestCommand(log *slog.Logger, argv []string) int {
	// #nosec G204
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return ee.ExitCode()
		}
		log.Error("test command failed to start", "error", err)
		return 1
	}
	return 0
}

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api", "http://localhost:8123", "base URL of a running `devserver up --api`")
	cmd.Flags().DurationVar(&f.APITimeout, "timeout", 10*time.Second, "request timeout")
}

func newStatusCmd() *cobra.Command {
	var f RemoteFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registry of a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
			ctx := cmd.Context()
			if !c.IsReachable(ctx) {
				return fmt.Errorf("controller not reachable at %s", f.APIUrl)
			}
			servers, err := c.Servers(ctx)
			if err != nil {
				return err
			}
			printJSON(servers)
			return nil
		},
	}
	addRemoteFlags(cmd, &f)
	return cmd
}

func newDownCmd() *cobra.Command {
	var f RemoteFlags
	var post string
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Tear down every server managed by a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
			ctx := cmd.Context()
			if !c.IsReachable(ctx) {
				return fmt.Errorf("controller not reachable at %s", f.APIUrl)
			}
			return c.Teardown(ctx, post)
		},
	}
	addRemoteFlags(cmd, &f)
	cmd.Flags().StringVar(&post, "post", "", "command to run after teardown")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the devserver version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("devserver", Version)
		},
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}
