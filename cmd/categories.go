package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List known category tags",
	RunE:  runCategories,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().BoolP("json", "j", false, "Output JSON")
}

func runCategories(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	lk, err := newLookup()
	if err != nil {
		return err
	}
	defer lk.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	result := lk.Engine().FetchCategories(ctx)
	if jsonOutput {
		return writeJSON(os.Stdout, result)
	}

	if len(result.Categories) == 0 {
		fmt.Println("No categories found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SLUG\tLABEL\n")
	for _, tag := range result.Categories {
		fmt.Fprintf(w, "%s\t%s\n", tag.Slug, tag.Label)
	}
	return w.Flush()
}
