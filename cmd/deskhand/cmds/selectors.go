package cmds

import (
	"os"

	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewSelectorsCommand(opts *Options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "selectors",
		Short: "Print the effective selector table as YAML",
		Long: "Print the built-in selector table merged with an override file. " +
			"The output can be edited and used as selectors_file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				if settings, err := opts.loadConfig(); err == nil {
					file = settings.SelectorsFile
				}
			}
			tbl, err := selectors.Load(file)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			return enc.Encode(tbl)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "selector override file (defaults to selectors_file from the config)")
	return cmd
}
