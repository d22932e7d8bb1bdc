package main

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csmart-libs/go-cartographer/examples/store"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func newDemoCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Map the seeded store directory and orders and dump the DTOs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := configOptions(v)
			if err != nil {
				return err
			}
			mapper, err := store.NewMapper(opts...)
			if err != nil {
				return errors.Wrap(err, "build store mapper")
			}

			svc := store.NewService(mapper)
			store.Seed(svc)
			return runDemo(cmd.OutOrStdout(), svc)
		},
	}
}

func runDemo(w io.Writer, svc *store.Service) error {
	people, err := svc.People()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "# people")
	for _, p := range people {
		fmt.Fprintf(w, "%T\n", p)
		dumper.Fdump(w, p)
	}

	fmt.Fprintln(w, "# orders")
	for _, id := range svc.Orders() {
		order, err := svc.Order(id)
		if err != nil {
			return err
		}
		dumper.Fdump(w, order)
	}

	logrus.Debugf("mapped %d people", len(people))
	return nil
}
