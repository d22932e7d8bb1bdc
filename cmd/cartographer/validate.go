package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csmart-libs/go-cartographer"
	"github.com/csmart-libs/go-cartographer/examples/store"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every member of the store profile can be populated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := configOptions(v)
			if err != nil {
				return err
			}
			cfg := cartographer.NewConfiguration(opts...)
			cfg.AddProfile(store.Profile{})

			err = cfg.AssertConfigurationIsValid()
			var verr *cartographer.ValidationError
			if errors.As(err, &verr) {
				for _, violation := range verr.Violations {
					logrus.WithFields(logrus.Fields{
						"source":      violation.SourceType,
						"destination": violation.DestinationType,
						"member":      violation.Member,
					}).Error(violation.Error())
				}
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}
