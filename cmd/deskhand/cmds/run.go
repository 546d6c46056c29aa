package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/composer"
	"github.com/go-go-golems/deskhand/pkg/events"
	"github.com/go-go-golems/deskhand/pkg/export"
	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/go-go-golems/deskhand/pkg/llm"
	"github.com/go-go-golems/deskhand/pkg/operator"
	"github.com/go-go-golems/deskhand/pkg/persistence/snapshots"
	"github.com/go-go-golems/deskhand/pkg/pilot"
	"github.com/go-go-golems/deskhand/pkg/redisstream"
	"github.com/go-go-golems/deskhand/pkg/scrape"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRunCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in and draft replies, manually or on autopilot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runSession(cmd.Context(), opts)
			switch {
			case errors.Is(err, context.Canceled):
				log.Info().Msg("interrupted")
				return nil
			case errors.Is(err, operator.ErrAborted):
				log.Info().Msg("stopped by operator")
				return nil
			}
			return err
		},
	}
}

func runSession(ctx context.Context, opts *Options) error {
	settings, err := opts.loadConfig()
	if err != nil {
		return err
	}
	sel, err := selectors.Load(settings.SelectorsFile)
	if err != nil {
		return err
	}

	console := operator.NewStd()
	console.Banner("deskhand", "Rascunhos de resposta para o atendimento. Nada é enviado sem você.")
	mode, err := console.SelectMode()
	if err != nil {
		return err
	}
	log.Info().Str("mode", string(mode)).Str("provider", settings.LLM.Provider).Msg("starting session")

	b := browser.New(settings.Browser)
	defer b.Close()
	mainTab, err := b.Start(ctx)
	if err != nil {
		return err
	}

	gen, err := llm.New(ctx, settings.LLM, llm.Deps{
		Tabs:      b,
		Clipboard: llm.SystemClipboard{},
		Selectors: sel,
		Echo:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = gen.Close() }()
	if web, ok := gen.(*llm.WebClient); ok {
		if err := web.Open(ctx); err != nil {
			return errors.Wrap(err, "open llm tab")
		}
	}

	var archive snapshots.Store
	if settings.Archive.DB != "" {
		store, err := snapshots.OpenFile(settings.Archive.DB)
		if err != nil {
			return errors.Wrap(err, "open archive")
		}
		defer func() { _ = store.Close() }()
		archive = store
	}

	pub, err := redisstream.BuildPublisher(settings.Redis)
	if err != nil {
		return errors.Wrap(err, "connect reply events")
	}
	publisher := events.NewPublisher(pub, settings.Redis.WithDefaults().Topic)
	defer func() { _ = publisher.Close() }()

	desk := helpdesk.New(mainTab, sel, settings.Helpdesk)
	p := pilot.New(pilot.Deps{
		Desk:      desk,
		Scraper:   scrape.New(mainTab, sel, settings.ScraperConfig()),
		Generator: gen,
		Composer:  composer.NewWriter(mainTab, sel, 0),
		Exporter:  export.New(settings.Paths.BackupDir, settings.Paths.OutputDir),
		Console:   console,
		Archive:   archive,
		Events:    publisher,
	}, settings.PilotConfig())
	defer p.Shutdown()
	log.Info().Str("run", p.RunID()).Msg("run started")

	if err := p.Login(ctx); err != nil {
		return err
	}
	if mode == operator.ModeAutopilot {
		return p.RunAutopilot(ctx)
	}
	return p.RunManual(ctx)
}
