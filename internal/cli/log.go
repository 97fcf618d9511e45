package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <entry-id>",
	Short: "Show revision history of an entry",
	Long:  `Display the revisions of an entry, newest first.`,
	Args:  cobra.ExactArgs(1),
	Run:   runLog,
}

var (
	logOneline bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each revision on a single line")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of revisions to show")
}

func runLog(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	revisions, err := c.App.Manager.ListRevisions(c.Ctx(), args[0])
	if err != nil {
		exitError("failed to list revisions: %v", err)
	}

	if len(revisions) == 0 {
		fmt.Println("No revisions yet")
		return
	}

	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	shown := 0
	for i := len(revisions) - 1; i >= 0; i-- {
		if logLimit > 0 && shown == logLimit {
			break
		}
		shown++

		rev := revisions[i]
		changed := make([]string, 0, len(rev.Meta.ChangedFields))
		for k := range rev.Meta.ChangedFields {
			changed = append(changed, k)
		}
		sort.Strings(changed)

		if logOneline {
			yellow.Printf("%s ", rev.ShortID())
			if i == len(revisions)-1 {
				cyan.Print("(latest) ")
			}
			fmt.Printf("%s %s\n", humanize.Time(rev.Meta.CreatedAt), strings.Join(changed, ","))
			continue
		}

		yellow.Printf("revision %s", rev.ID())
		if i == len(revisions)-1 {
			cyan.Print(" (latest)")
		}
		fmt.Println()
		if rev.Meta.CreatedBy != "" {
			fmt.Printf("Author: %s\n", rev.Meta.CreatedBy)
		}
		fmt.Printf("Date:   %s\n", rev.Meta.CreatedAt.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Printf("\n    changed: %s\n\n", strings.Join(changed, ", "))
	}
}
