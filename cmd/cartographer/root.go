package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csmart-libs/go-cartographer"
)

const envPrefix = "CARTOGRAPHER"

const (
	keyConfig             = "config"
	keyDebug              = "debug"
	keyMaxDepth           = "max-depth"
	keyPreserveReferences = "preserve-references"
	keyNullCollections    = "null-collections"
)

var longRootCmdDescription = `cartographer maps the demo store domain with a compiled mapper
configuration. Options come from a YAML file (--config), flags and
CARTOGRAPHER_* environment variables, in increasing priority.
`

func newRootCmd() *cobra.Command {
	return newRootCmdWith(viper.New())
}

func newRootCmdWith(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cartographer",
		Short:         "Run and validate the demo store mapping profile.",
		Long:          longRootCmdDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if v.GetBool(keyDebug) {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(keyConfig, "", "YAML file with mapping options")
	flags.BoolP(keyDebug, "d", false, "turn on debug logging")
	flags.Int(keyMaxDepth, 0, "maximum nesting depth, 0 for unlimited")
	flags.Bool(keyPreserveReferences, false, "map repeated source pointers to one destination")
	flags.String(keyNullCollections, "", "preserve-null or use-empty-collection")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(newDemoCmd(v), newValidateCmd(v))
	return cmd
}

// loadOptions merges the options file with flag and environment overrides.
func loadOptions(v *viper.Viper) (cartographer.Options, error) {
	var opts cartographer.Options
	if path := v.GetString(keyConfig); path != "" {
		loaded, err := cartographer.LoadOptionsFile(path)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}

	if v.IsSet(keyMaxDepth) {
		opts.MaxDepth = v.GetInt(keyMaxDepth)
	}
	if v.IsSet(keyPreserveReferences) {
		opts.PreserveReferences = v.GetBool(keyPreserveReferences)
	}
	if s := v.GetString(keyNullCollections); s != "" {
		strategy, err := cartographer.ParseNullCollectionStrategy(s)
		if err != nil {
			return opts, errors.Wrap(err, "--"+keyNullCollections)
		}
		opts.NullCollections = strategy
	}
	return opts, opts.Validate()
}

func configOptions(v *viper.Viper) ([]cartographer.ConfigOption, error) {
	opts, err := loadOptions(v)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"max_depth":           opts.MaxDepth,
		"preserve_references": opts.PreserveReferences,
		"null_collections":    opts.NullCollections.String(),
	}).Debug("mapping options loaded")

	return []cartographer.ConfigOption{
		cartographer.WithLogger(logrus.WithField("component", "cartographer")),
		cartographer.WithOptions(opts),
	}, nil
}
