package cmds

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/persistence/snapshots"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewArchiveCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the snapshot archive",
	}
	cmd.AddCommand(newArchiveListCommand(opts))
	return cmd
}

func newArchiveListCommand(opts *Options) *cobra.Command {
	var (
		db    string
		q     snapshots.Query
		since time.Duration
		full  bool
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List archived processing passes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if db == "" {
				settings, err := opts.loadConfig()
				if err != nil {
					return err
				}
				db = settings.Archive.DB
			}
			if db == "" {
				return errors.New("no archive configured (archive.db or --db)")
			}
			store, err := snapshots.OpenFile(db)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if since > 0 {
				q.SinceMs = time.Now().Add(-since).UnixMilli()
			}
			items, err := store.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if full {
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer func() { _ = enc.Close() }()
				return enc.Encode(items)
			}
			for _, it := range items {
				fmt.Printf("%s  %-24s  %3d msgs  close=%-5t  %s  %s\n",
					time.UnixMilli(it.CreatedAtMs).Format("2006-01-02 15:04:05"),
					it.ClientName,
					len(it.Messages),
					it.CloseSuggested,
					it.Provider,
					firstLine(it.Reply, 60),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "archive file (defaults to archive.db from the config)")
	cmd.Flags().StringVar(&q.ConversationID, "conversation", "", "filter by conversation id")
	cmd.Flags().StringVar(&q.ClientName, "client", "", "filter by client name (case-insensitive)")
	cmd.Flags().StringVar(&q.RunID, "run", "", "filter by run id")
	cmd.Flags().DurationVar(&since, "since", 0, "only passes newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "maximum number of passes")
	cmd.Flags().BoolVar(&full, "full", false, "print complete snapshots as YAML")
	return cmd
}

func firstLine(s string, limit int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
