package cmd

import (
	"fmt"

	"github.com/signalnine/verifierbench/internal/config"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured backends, variants and goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Backends:")
			for _, b := range cfg.Backends {
				fmt.Printf("  - %s (%s: %s)\n", b.Name, b.Kind, b.Model)
			}
			fmt.Println("\nVariants:")
			for _, v := range cfg.Variants {
				fmt.Printf("  - %s\n", v)
			}
			fmt.Printf("\nGoals (search: %s, max %d results):\n", cfg.Search.Provider, cfg.Search.MaxResults)
			for _, g := range cfg.Goals {
				fmt.Printf("  %2d. %s\n", g.ID, g.Text)
			}
			return nil
		},
	}
}
