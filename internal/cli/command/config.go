package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessfile-go/internal/infra/confloader"
	"github.com/yndnr/sessfile-go/internal/sweeper"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate the configuration",
				Action: configValidate,
			},
		},
	}
}

// flatConfig lists the effective configuration by key.
func flatConfig(cfg *sweeper.Config) map[string]any {
	return map[string]any{
		"store.dir":          cfg.Store.Dir,
		"store.prefix":       cfg.Store.Prefix,
		"store.suffix":       cfg.Store.Suffix,
		"store.codec":        cfg.Store.Codec,
		"store.temp_max_age": cfg.Store.TempMaxAge.String(),
		"store.no_sync_dir":  cfg.Store.NoSyncDir,
		"sweep.interval":     cfg.Sweep.Interval.String(),
		"sweep.timeout":      cfg.Sweep.Timeout.String(),
		"sweep.rate_limit":   cfg.Sweep.RateLimit,
		"sweep.burst":        cfg.Sweep.Burst,
		"sweep.run_on_start": cfg.Sweep.RunOnStart,
		"metrics.addr":       cfg.Metrics.Addr,
		"log.level":          cfg.Log.Level,
		"log.format":         cfg.Log.Format,
		"log.add_source":     cfg.Log.AddSource,
	}
}

func configShow(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	return e.print(flatConfig(e.cfg))
}

func configValidate(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	sources := []string{"defaults"}
	for _, src := range e.loader.Sources() {
		switch src {
		case confloader.SourceFile:
			sources = append(sources, e.loader.FilePath())
		case confloader.SourceOverrides:
			sources = append(sources, "flags")
		default:
			sources = append(sources, src)
		}
	}
	fmt.Fprintf(e.out, "configuration OK (%s)\n", strings.Join(sources, ", "))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
