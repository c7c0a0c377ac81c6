package command

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessfile-go/internal/cli/output"
	"github.com/yndnr/sessfile-go/internal/infra/buildinfo"
	"github.com/yndnr/sessfile-go/internal/infra/confloader"
	"github.com/yndnr/sessfile-go/internal/sweeper"
	"github.com/yndnr/sessfile-go/internal/telemetry/logger"
	"github.com/yndnr/sessfile-go/pkg/filestore"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "sessfile",
		Usage:   "Inspect and maintain a file-backed session directory",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PurgeCommand(),
			SweepCommand(),
			InspectCommand(),
			ListCommand(),
			RemoveCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"SESSFILE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Session directory (overrides store.dir)",
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Session file name prefix (overrides store.prefix)",
		},
		&cli.StringFlag{
			Name:  "suffix",
			Usage: "Session file name suffix (overrides store.suffix)",
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "Record format: json or binary (overrides store.codec)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// flagKeys maps flags to the configuration keys they override.
var flagKeys = map[string]string{
	"dir":          "store.dir",
	"prefix":       "store.prefix",
	"suffix":       "store.suffix",
	"codec":        "store.codec",
	"log-level":    "log.level",
	"interval":     "sweep.interval",
	"rate-limit":   "sweep.rate_limit",
	"metrics-addr": "metrics.addr",
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config string
	Output string
	Wide   bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config: c.String("config"),
		Output: c.String("output"),
		Wide:   c.Bool("wide"),
	}
}

// env is what a command needs after setup.
type env struct {
	cfg    *sweeper.Config
	loader *confloader.Loader
	log    *slog.Logger
	out    io.Writer
	flags  *GlobalFlags
	format output.Format
}

func setup(c *cli.Context) (*env, error) {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if c.IsSet(name) {
			overrides[key] = c.Value(name)
		}
	}

	e := &env{
		loader: confloader.NewLoader(
			confloader.WithConfigFile(flags.Config),
			confloader.WithOverrides(overrides),
		),
		out:    c.App.Writer,
		flags:  flags,
		format: format,
	}

	cfg, err := e.load()
	if err != nil {
		return nil, err
	}
	e.cfg = cfg

	log, err := sweeper.NewLogger(&cfg.Log, c.App.ErrWriter)
	if err != nil {
		return nil, err
	}
	e.log = log
	logger.SetDefault(log)
	return e, nil
}

// load reads every configuration source into a fresh Config.
func (e *env) load() (*sweeper.Config, error) {
	cfg := sweeper.Default()
	if err := e.loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := sweeper.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (e *env) openStore() (*filestore.Store, error) {
	return sweeper.OpenStore(e.cfg, e.log, nil)
}

// tabler is implemented by results with a custom table layout.
type tabler interface {
	table(wide bool) *output.Table
}

func (e *env) print(data any) error {
	if t, ok := data.(tabler); ok && e.format == output.FormatTable {
		data = t.table(e.flags.Wide)
	}
	return output.NewFormatter(e.format, e.flags.Wide).Format(e.out, data)
}
