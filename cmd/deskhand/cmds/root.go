package cmds

import (
	"io"

	"github.com/go-go-golems/deskhand/pkg/config"
	"github.com/go-go-golems/deskhand/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Options are the root persistent flags.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogDir     string

	logCloser io.Closer
}

func NewRootCommand() *cobra.Command {
	opts := &Options{}
	runCmd := NewRunCommand(opts)

	rootCmd := &cobra.Command{
		Use:   "deskhand",
		Short: "deskhand drafts replies to helpdesk chats and leaves them in the composer for review",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// console only until a command has read its config
			return opts.initLogger(logging.Settings{Level: opts.LogLevel, Dir: ""})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.closeLog()
		},
		SilenceUsage: true,
		RunE:         runCmd.RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.LogDir, "log-dir", "", "directory for the per-run log file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(NewArchiveCommand(opts))
	rootCmd.AddCommand(NewSelectorsCommand(opts))
	rootCmd.AddCommand(NewEventsCommand(opts))
	return rootCmd
}

// loadConfig reads the config file and re-initializes logging from it. Flags
// win over the file.
func (o *Options) loadConfig() (*config.Settings, error) {
	s, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	ls := s.Log
	if o.LogLevel != "" {
		ls.Level = o.LogLevel
	}
	if o.LogDir != "" {
		ls.Dir = o.LogDir
	}
	if err := o.initLogger(ls); err != nil {
		return nil, err
	}
	return s, nil
}

func (o *Options) initLogger(s logging.Settings) error {
	o.closeLog()
	closer, path, err := logging.Init(s, nil)
	if err != nil {
		return err
	}
	o.logCloser = closer
	if path != "" {
		log.Info().Str("path", path).Msg("logging to file")
	}
	return nil
}

func (o *Options) closeLog() {
	if o.logCloser != nil {
		_ = o.logCloser.Close()
		o.logCloser = nil
	}
}
