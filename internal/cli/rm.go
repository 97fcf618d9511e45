package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <revision-id>",
	Short: "Delete revisions",
	Long: `Delete a single revision, or with --all every revision of an entry.

Examples:
  entryrev rm 3f2a9c1e-...
  entryrev rm --all <entry-id>`,
	Args: cobra.ExactArgs(1),
	Run:  runRm,
}

var rmAll bool

func init() {
	rmCmd.Flags().BoolVar(&rmAll, "all", false, "Delete every revision of the given entry")
}

func runRm(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := c.Ctx()
	red := color.New(color.FgRed)

	if !rmAll {
		if _, err := c.App.Manager.DeleteRevision(ctx, args[0]); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				exitError("revision not found: %s", args[0])
			}
			exitError("failed to delete revision: %v", err)
		}
		red.Printf("Deleted revision %s\n", shortID(args[0]))
		return
	}

	results, err := c.App.Manager.DeleteAllRevisions(ctx, args[0])
	if err != nil {
		exitError("failed to delete revisions: %v", err)
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		if err := results[id]; err != nil {
			failed++
			fmt.Printf("  %s: %v\n", shortID(id), err)
			continue
		}
		red.Printf("  - %s\n", shortID(id))
	}
	fmt.Printf("Deleted %d of %d revisions\n", len(ids)-failed, len(ids))
	if failed > 0 {
		exitError("%d revisions could not be deleted", failed)
	}
}
