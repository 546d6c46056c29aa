package cmds

import (
	"fmt"

	"github.com/go-go-golems/deskhand/pkg/events"
	"github.com/go-go-golems/deskhand/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewEventsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Reply events published to Redis Streams",
	}
	cmd.AddCommand(newEventsTailCommand(opts))
	return cmd
}

func newEventsTailCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Print drafted replies as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.loadConfig()
			if err != nil {
				return err
			}
			rs := settings.Redis.WithDefaults()
			if !rs.Enabled {
				log.Warn().Msg("redis.enabled is false, deskhand run will not publish anything")
			}
			ctx := cmd.Context()
			if err := redisstream.EnsureGroupAtTail(ctx, rs.Addr, rs.Topic, rs.Group); err != nil {
				return errors.Wrap(err, "create consumer group")
			}
			sub, err := redisstream.BuildGroupSubscriber(rs)
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()

			log.Info().Str("topic", rs.Topic).Str("group", rs.Group).Msg("tailing reply events")
			return events.Tail(ctx, sub, rs.Topic, func(ev events.ReplyDrafted) error {
				suffix := ""
				if ev.Close {
					suffix = " [close suggested]"
				}
				fmt.Printf("%s  %s (%s)%s\n%s\n\n", ev.At.Format("15:04:05"), ev.ClientName, ev.Provider, suffix, ev.Reply)
				return nil
			})
		},
	}
}
