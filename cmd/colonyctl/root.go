package main

import (
	"colonyledger/internal/adapters/export"
	"colonyledger/internal/core"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// noStore marks commands that work without a record store.
const noStore = "no-store"

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "colonyctl",
		Short:        "Manage a laboratory mouse colony",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), cmd.Annotations[noStore] == "")
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a colonyledger YAML config file")
	flags.BoolVarP(&a.yes, "yes", "y", false, "answer yes to every confirmation prompt")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		sacrificeCommand(a),
		sacrificeCageCommand(a),
		breedCommand(a),
		birthCommand(a),
		weanCommand(a),
		nextCohortCommand(a),
		parentsCommand(a),
		dateBornCommand(a),
		exportCommand(a),
	)
	return root
}

// run executes one command line and always releases what setup opened.
func run(a *app, args []string) error {
	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.Execute()
	if terr := a.teardown(); terr != nil && err == nil {
		fmt.Fprintln(a.errOut, "Error:", terr)
		err = terr
	}
	return err
}

func (a *app) parseDate(v string) (time.Time, error) {
	d, err := a.settings.Colony.Core().ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}

func sacrificeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sacrifice <animal-id>",
		Short: "Mark one animal as sacrificed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(a.svc.Sacrifice(cmd.Context(), args[0]))
		},
	}
}

func sacrificeCageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sacrifice-cage <cage>",
		Short: "Mark every living animal in a cage as sacrificed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(a.svc.SacrificeCage(cmd.Context(), args[0]))
		},
	}
}

func breedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "breed <cage> <date> <male-id> <female-id> [female-id-2]",
		Short: "Move a male and one or two females into a breeding cage",
		Args:  cobra.RangeArgs(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := a.parseDate(args[1])
			if err != nil {
				return err
			}
			req := core.BreedingRequest{Cage: args[0], Date: date, MaleID: args[2], FemaleID: args[3]}
			if len(args) == 5 {
				req.FemaleID2 = args[4]
			}
			return a.print(a.svc.SetBreeding(cmd.Context(), req))
		},
	}
}

func birthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "birth <cage> <date>",
		Short: "Record a litter born in a breeding cage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := a.parseDate(args[1])
			if err != nil {
				return err
			}
			return a.print(a.svc.Birth(cmd.Context(), args[0], date))
		},
	}
}

func weanCommand(a *app) *cobra.Command {
	var req core.WeaningRequest
	cmd := &cobra.Command{
		Use:   "wean <cage> <strain>",
		Short: "Wean a litter into new records and destination cages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Cage, req.Strain = args[0], args[1]
			return a.print(a.svc.Weaned(cmd.Context(), req))
		},
	}
	f := cmd.Flags()
	f.IntVar(&req.FemaleCount, "females", 0, "number of weaned females")
	f.StringVar(&req.FemaleCage, "female-cage", "", "first destination cage for females")
	f.StringVar(&req.FemaleCage2, "female-cage2", "", "overflow cage for females")
	f.IntVar(&req.MaxFemalesPerCage, "max-females", 0, "females per cage before overflow (default from config)")
	f.IntVar(&req.MaleCount, "males", 0, "number of weaned males")
	f.StringVar(&req.MaleCage, "male-cage", "", "first destination cage for males")
	f.StringVar(&req.MaleCage2, "male-cage2", "", "overflow cage for males")
	f.IntVar(&req.MaxMalesPerCage, "max-males", 0, "males per cage before overflow (default from config)")
	return cmd
}

func nextCohortCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next-cohort <cage>",
		Short: "Print the next free cohort letter of a parental cage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			letter, err := a.svc.NextCohortLetter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, letter)
			return nil
		},
	}
}

func parentsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parents <cage>",
		Short: "Print the mother and father of the litter in a cage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.svc.ResolveParents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Mother: %s\nFather: %s\n", p.Mother.IDS(), p.Father.IDS())
			return nil
		},
	}
}

func dateBornCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "date-born <weaning-date>",
		Short:       "Print the birth date implied by a weaning date",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{noStore: "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			born, err := a.settings.Colony.Core().DateBorn(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, born)
			return nil
		},
	}
}

func exportCommand(a *app) *cobra.Command {
	var format, cage, prefix string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the colony (or one cage) to the configured blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := a.openBlob(cmd.Context(), a.settings.Blob)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			exp, err := export.New(a.svc, store, export.WithLogger(core.NewZapLogger(a.logger)))
			if err != nil {
				return err
			}
			art, err := exp.Export(cmd.Context(), export.Request{Format: f, Cage: cage, Prefix: prefix})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Exported %d animals to %s (%d bytes)\n", art.Count, art.Key, art.Size)
			if art.URL != "" {
				fmt.Fprintln(a.out, art.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "artifact format: json, csv or yaml")
	cmd.Flags().StringVar(&cage, "cage", "", "export only this cage")
	cmd.Flags().StringVar(&prefix, "prefix", export.DefaultPrefix, "blob key prefix")
	return cmd
}
