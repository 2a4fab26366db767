package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ent0n29/agenthub/internal/app"
	"github.com/ent0n29/agenthub/internal/config"
	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/roster"
	"github.com/ent0n29/agenthub/internal/store"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect the agent roster",
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the persisted agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		repo, err := store.NewRepository(cmd.Context(), cfg.DatabaseURL, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		seed, err := app.Seed(cfg)
		if err != nil {
			return err
		}
		svc, err := roster.New(cmd.Context(), repo, seed)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tVOICE\tOCCUPATION")
		for _, p := range svc.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.PrebuiltVoice(), p.Occupation)
		}
		return w.Flush()
	},
}

var rosterValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a YAML roster seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := persona.LoadRoster(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d agents ok\n", args[0], len(agents))
		return nil
	},
}

var rosterWidgetCmd = &cobra.Command{
	Use:   "widget ID",
	Short: "Print the embeddable widget snippet for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		seed, err := app.Seed(cfg)
		if err != nil {
			return err
		}
		p, ok := findPersona(seed, args[0])
		if !ok {
			return fmt.Errorf("agent %q not in roster seed", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), persona.WidgetSnippet(p))
		return nil
	},
}

func init() {
	rosterCmd.AddCommand(rosterListCmd)
	rosterCmd.AddCommand(rosterValidateCmd)
	rosterCmd.AddCommand(rosterWidgetCmd)
}
