package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/kilupskalvis/entryrev/internal/core"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <revision-id>",
	Short: "Compare a revision with the current entry",
	Long: `Show the fields of a revision that differ from the current entry.
Lines marked --- exist only in the revision, +++ only in the current entry,
and ~~~ differ between the two.`,
	Args: cobra.ExactArgs(1),
	Run:  runShow,
}

func runShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := c.Ctx()
	rev, err := c.App.Manager.GetRevision(ctx, args[0])
	if err != nil {
		exitError("revision not found: %s", args[0])
	}
	current, err := c.App.Entries.GetRecord(ctx, rev.Meta.ParentID)
	if err != nil {
		exitError("entry %s of revision %s not found", rev.Meta.ParentID, rev.ShortID())
	}

	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	yellow.Printf("revision %s\n", rev.ID())
	fmt.Printf("Entry:  %s\n", rev.Meta.ParentID)
	if rev.Meta.CreatedBy != "" {
		fmt.Printf("Author: %s\n", rev.Meta.CreatedBy)
	}
	fmt.Printf("Date:   %s\n\n", rev.Meta.CreatedAt.Format("Mon Jan 2 15:04:05 2006"))

	diffs, err := c.App.Renderer.FieldDiffs(ctx, rev, current)
	if err != nil {
		exitError("failed to compare revision: %v", err)
	}
	if len(diffs) == 0 {
		fmt.Println("Identical to the current entry")
		return
	}

	oldFields := core.StripReserved(rev.Record.Fields)
	newFields := core.StripReserved(current.Fields)
	for _, d := range diffs {
		before, inOld := oldFields[d.Key]
		after, inNew := newFields[d.Key]
		switch {
		case !inNew:
			red.Printf("--- %s\n", d.Label)
			red.Printf("    %s\n", formatValue(before))
		case !inOld:
			green.Printf("+++ %s\n", d.Label)
			green.Printf("    %s\n", formatValue(after))
		default:
			yellow.Printf("~~~ %s\n", d.Label)
			fmt.Println("  Revision:")
			red.Printf("    %s\n", formatValue(before))
			fmt.Println("  Current:")
			green.Printf("    %s\n", formatValue(after))
		}
		fmt.Println()
	}
}

func formatValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.MarshalIndent(v, "    ", "  ")
	return string(data)
}
