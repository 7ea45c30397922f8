package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"execdash/internal/editor"
	"execdash/internal/snapshot"
	"execdash/internal/store"
)

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the default snapshot if no metrics exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			s, created, err := st.Seed(cliContext(cmd))
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded default snapshot (id %d)\n", s.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "metrics already present (id %d); nothing to do\n", s.ID)
			}
			return nil
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	var allowDefault bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the latest snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := st.GetLatest(cliContext(cmd))
			if err != nil {
				if !allowDefault || !errors.Is(err, store.ErrNotFound) {
					return err
				}
				s = snapshot.Default()
			}
			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowDefault, "default", false, "Print the default snapshot when none is stored")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	var factors, deltas, indicators map[string]string
	values := make(map[string]*float64, len(snapshot.Fields))

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change metric values on top of the latest snapshot",
		Long: `set loads the latest snapshot (or the defaults), applies the given values
and stores the merged result, exactly like a submit from the admin editor.

  dashctl set --people_served=5100000 --factor economicGrowth=1.5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := partialFromFlags(cmd, values, factors, deltas, indicators)
			if err != nil {
				return err
			}
			if p.IsEmpty() {
				return errors.New("nothing to set; pass at least one value flag")
			}

			st, cleanup, err := opts.openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			res := editor.New(st, opts.logger()).Submit(cliContext(cmd), p)
			if res.Status != editor.StatusSaved {
				return fmt.Errorf("%s: %s", res.Status, res.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", res.Message, res.Snapshot.ID)
			return nil
		},
	}

	for _, f := range snapshot.Fields {
		values[f.Key] = cmd.Flags().Float64(f.Key, 0, f.Label)
	}
	cmd.Flags().StringToStringVar(&factors, "factor", nil, "Scenario factor as key=value (repeatable)")
	cmd.Flags().StringToStringVar(&deltas, "delta", nil, "Chart delta as key=value (repeatable)")
	cmd.Flags().StringToStringVar(&indicators, "indicator", nil, "Global indicator as key=value (repeatable)")
	return cmd
}

// partialFromFlags sets only the fields whose flags were given.
func partialFromFlags(cmd *cobra.Command, values map[string]*float64, factors, deltas, indicators map[string]string) (snapshot.Partial, error) {
	var p snapshot.Partial
	for _, f := range snapshot.Fields {
		if !cmd.Flags().Changed(f.Key) {
			continue
		}
		if err := p.Set(f.Key, *values[f.Key]); err != nil {
			return p, err
		}
	}

	var err error
	if p.ScenarioFactors, err = parseEntries("factor", factors); err != nil {
		return p, err
	}
	if p.ChartDeltas, err = parseEntries("delta", deltas); err != nil {
		return p, err
	}
	if p.GlobalIndicators, err = parseEntries("indicator", indicators); err != nil {
		return p, err
	}
	return p, nil
}

func parseEntries(flag string, in map[string]string) (map[string]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("--%s %s: %q is not a number", flag, k, v)
		}
		out[k] = n
	}
	return out, nil
}
