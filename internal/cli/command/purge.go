package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessfile-go/pkg/filestore"
)

// PurgeCommand returns the one-shot purge command.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:   "purge",
		Usage:  "Remove expired, corrupt and stale temporary files once",
		Action: runPurge,
	}
}

type purgeView struct {
	Dir       string `json:"dir" yaml:"dir"`
	Scanned   int    `json:"scanned" yaml:"scanned"`
	Expired   int    `json:"expired" yaml:"expired"`
	Corrupt   int    `json:"corrupt" yaml:"corrupt"`
	TempFiles int    `json:"temp_files" yaml:"temp_files"`
	Failed    int    `json:"failed" yaml:"failed"`
	Duration  string `json:"duration" yaml:"duration"`
}

func newPurgeView(dir string, res filestore.PurgeResult) purgeView {
	return purgeView{
		Dir:       dir,
		Scanned:   res.Scanned,
		Expired:   res.Expired,
		Corrupt:   res.Corrupt,
		TempFiles: res.TempFiles,
		Failed:    res.Failed,
		Duration:  res.Duration.String(),
	}
}

func runPurge(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	res, err := store.Purge(c.Context)
	if perr := e.print(newPurgeView(store.Config().Dir, res)); perr != nil {
		return perr
	}
	return err
}
