package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <entry-id> <revision-id>",
	Short: "Restore an entry to a revision",
	Long: `Restore an entry to the state stored in one of its revisions. The
current state is kept as a new revision. The configured actor must hold
the edit_entries capability.`,
	Args: cobra.ExactArgs(2),
	Run:  runRestore,
}

var restoreURLCmd = &cobra.Command{
	Use:   "restore-url <revision-id>",
	Short: "Print a signed restore link for a revision",
	Args:  cobra.ExactArgs(1),
	Run:   runRestoreURL,
}

func runRestore(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := c.Ctx()
	entryID, revisionID := args[0], args[1]

	gate, err := c.App.Gate()
	if err != nil {
		exitError("failed to open token ledger: %v", err)
	}
	token, err := c.App.Tokens.Issue(c.Config.Actor, entryID, revisionID)
	if err != nil {
		exitError("failed to issue restore token: %v", err)
	}
	if err := gate.Authorize(ctx, c.Config.Actor, entryID, revisionID, token); err != nil {
		exitError("%v", err)
	}

	if _, err := c.App.Restorer.Restore(ctx, entryID, revisionID); err != nil {
		exitError("failed to restore: %v", err)
	}

	color.New(color.FgGreen).Printf("Restored %s to revision %s\n", shortID(entryID), shortID(revisionID))
	if c.Config.DeleteAfterRestore {
		fmt.Printf("Removed revision %s\n", shortID(revisionID))
	}
}

func runRestoreURL(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	rev, err := c.App.Manager.GetRevision(c.Ctx(), args[0])
	if err != nil {
		exitError("revision not found: %s", args[0])
	}
	u, err := c.App.Renderer.RestoreURL(rev, c.Config.Actor)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Println(u)
}
