package tenantnote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/surrealdb/tenantnote/pkg/logger"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// globalFlags are the persistent flags shared by every sub-command. Zero
// values leave the file and environment settings alone.
type globalFlags struct {
	configPath string
	store      string
	port       string
	logLevel   string
	logFormat  string
	readOnly   bool
}

// loadConfig layers defaults, the config file, the environment, and the
// flags, in that order.
func (f *globalFlags) loadConfig(cmd *cobra.Command) (*Config, error) {
	config := DefaultConfig()
	if f.configPath != "" {
		var err error
		if config, err = LoadFromFile(f.configPath); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if f.store != "" {
		config.Store.Backend = f.store
	}
	if f.port != "" {
		config.Server.Port = f.port
	}
	if f.logLevel != "" {
		config.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		config.Log.Format = f.logFormat
	}
	if cmd.Flags().Changed("read-only") {
		config.ReadOnly = f.readOnly
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// withApp loads the configuration, builds the logger and the App, runs fn,
// and closes everything afterwards.
func (f *globalFlags) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	config, err := f.loadConfig(cmd)
	if err != nil {
		return err
	}

	logData, err := logger.New().
		FromPath(config.Log.Path).
		FromBuffer(cmd.ErrOrStderr()).
		WithLevel(config.Log.Level).
		WithFormat(config.Log.Format).
		Make()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logData.Close()

	ctx := cmd.Context()
	app, err := New(ctx, config, logData.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return fn(ctx, app)
}

// NewRootCommand builds the tenantnote command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "tenantnote",
		Short:         "Multi-tenant notes API with per-plan note limits",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&flags.store, "store", "", "store backend: postgres, pgx, surrealdb or memory")
	pf.StringVar(&flags.port, "port", "", "HTTP port to listen on")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (json or console)")
	pf.BoolVar(&flags.readOnly, "read-only", false, "reject every write with 503")

	root.AddCommand(
		serveCmd(flags),
		migrateCmd(flags),
		seedCmd(flags),
		tokenCmd(flags),
		versionCmd(),
	)
	return root
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, app *App) error {
				if migrate {
					if err := app.Migrate(ctx); err != nil {
						return err
					}
				}
				if err := app.Run(ctx); err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Migrate(ctx)
			})
		},
	}
}

func seedCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo tenants (acme, globex) and their users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, app *App) error {
				result, err := app.Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d tenants and %d users\n",
					result.TenantsCreated, result.UsersCreated)
				return nil
			})
		},
	}
}

func tokenCmd(flags *globalFlags) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for a stored user without a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, app *App) error {
				result, err := app.IssueToken(ctx, email)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user to issue a token for")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Main runs the command line args under ctx. Tests call it directly instead
// of building the binary; cancelling ctx stops a running server.
func Main(ctx context.Context, args []string) error {
	return MainWithIO(ctx, args, os.Stdout, os.Stderr)
}

// MainWithIO is Main with explicit output streams.
func MainWithIO(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
