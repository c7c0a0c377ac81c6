package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessfile-go/internal/cli/output"
	"github.com/yndnr/sessfile-go/pkg/filestore"
	"github.com/yndnr/sessfile-go/pkg/session"
)

const statusCorrupt = "corrupt"

// InspectCommand returns the command printing one stored record.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Aliases:   []string{"get"},
		Usage:     "Show a stored session, including expired ones",
		ArgsUsage: "SESSION_ID",
		Action:    runInspect,
	}
}

// ListCommand returns the command listing stored sessions.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "List stored sessions with their expiry state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Only show sessions in this state: live, expired, no-expiry, corrupt",
			},
		},
		Action: runList,
	}
}

// RemoveCommand returns the command deleting stored sessions.
func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"delete"},
		Usage:     "Delete stored sessions",
		ArgsUsage: "SESSION_ID...",
		Action:    runRemove,
	}
}

type recordView struct {
	ID        string         `json:"id" yaml:"id"`
	Status    string         `json:"status" yaml:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Path      string         `json:"path" yaml:"path"`
	Size      int64          `json:"size" yaml:"size"`
	Modified  time.Time      `json:"modified" yaml:"modified"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

func newRecordView(e *filestore.Entry, decodeErr error) recordView {
	v := recordView{
		ID:       e.ID,
		Path:     e.Path,
		Size:     e.Size,
		Modified: e.ModTime,
	}
	if decodeErr != nil {
		v.Status = statusCorrupt
		v.Error = decodeErr.Error()
		return v
	}
	v.Status = e.Status.String()
	if e.Record.HasExpiry() {
		t := e.Record.ExpiresAt
		v.ExpiresAt = &t
	}
	v.Data = make(map[string]any, len(e.Record.Data))
	for k, val := range e.Record.Data {
		v.Data[k] = val.Any()
	}
	return v
}

// table lays the record out one attribute per row.
func (v recordView) table(wide bool) *output.Table {
	t := &output.Table{}
	t.SetHeaders("FIELD", "VALUE")
	t.AddRow("id", v.ID)
	t.AddRow("status", v.Status)
	if v.ExpiresAt != nil {
		t.AddRow("expires_at", v.ExpiresAt.UTC().Format(time.RFC3339))
	} else if v.Status != statusCorrupt {
		t.AddRow("expires_at", "never")
	}
	if wide {
		t.AddRow("path", v.Path)
		t.AddRow("size", fmt.Sprint(v.Size))
		t.AddRow("modified", v.Modified.UTC().Format(time.RFC3339))
	}
	if v.Error != "" {
		t.AddRow("error", v.Error)
	}
	for _, k := range sortedKeys(v.Data) {
		t.AddRow("data."+k, attrString(v.Data[k]))
	}
	return t
}

// attrString renders an attribute compactly on one line.
func attrString(x any) string {
	switch t := x.(type) {
	case nil:
		return "null"
	case string:
		return t
	}
	b, err := json.Marshal(x)
	if err != nil {
		return fmt.Sprint(x)
	}
	return string(b)
}

func runInspect(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("session ID required")
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	entry, err := store.Inspect(c.Context, id)
	if entry == nil {
		if err != nil {
			return err
		}
		return fmt.Errorf("session %q not found", id)
	}
	if err != nil && !errors.Is(err, session.ErrCorrupt) {
		return err
	}
	if perr := e.print(newRecordView(entry, err)); perr != nil {
		return perr
	}
	return err
}

type listEntry struct {
	ID        string     `json:"id" yaml:"id"`
	Status    string     `json:"status" yaml:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty" table:"EXPIRES"`
	Size      int64      `json:"size" yaml:"size" table:"BYTES,wide"`
	Modified  time.Time  `json:"modified" yaml:"modified" table:"MODIFIED,wide"`
	Attrs     int        `json:"attributes" yaml:"attributes" table:"ATTRS,wide"`
}

func runList(c *cli.Context) error {
	filter := c.String("status")
	switch filter {
	case "", "live", "expired", "no-expiry", statusCorrupt:
	default:
		return fmt.Errorf("unknown status %q", filter)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	ids, err := store.List(c.Context)
	if err != nil {
		return err
	}

	items := make([]listEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := store.Inspect(c.Context, id)
		if entry == nil {
			if err != nil {
				return err
			}
			continue
		}
		if err != nil && !errors.Is(err, session.ErrCorrupt) {
			return err
		}

		item := listEntry{ID: id, Size: entry.Size, Modified: entry.ModTime}
		if err != nil {
			item.Status = statusCorrupt
		} else {
			item.Status = entry.Status.String()
			item.Attrs = len(entry.Record.Data)
			if entry.Record.HasExpiry() {
				t := entry.Record.ExpiresAt
				item.ExpiresAt = &t
			}
		}
		if filter != "" && item.Status != filter {
			continue
		}
		items = append(items, item)
	}
	return e.print(items)
}

func runRemove(c *cli.Context) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return errors.New("at least one session ID required")
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.openStore()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := store.Delete(c.Context, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		fmt.Fprintf(e.out, "removed %s\n", id)
	}
	return errors.Join(errs...)
}
