package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/spf13/cobra"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Create, edit and inspect entries",
}

var entryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an entry",
	Args:  cobra.NoArgs,
	Run:   runEntryCreate,
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of an entry",
	Long: `Update fields of an entry. If the update changes any field, the
previous state is stored as a revision.`,
	Args: cobra.ExactArgs(1),
	Run:  runEntryUpdate,
}

var entryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an entry",
	Args:  cobra.ExactArgs(1),
	Run:   runEntryShow,
}

var entryColumnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List entry metadata columns",
	Args:  cobra.NoArgs,
	Run:   runEntryColumns,
}

var (
	entryForm  string
	entrySet   []string
	entryUnset []string
	entryOwner string
)

func init() {
	entryCmd.AddCommand(entryCreateCmd)
	entryCmd.AddCommand(entryUpdateCmd)
	entryCmd.AddCommand(entryShowCmd)
	entryCmd.AddCommand(entryColumnsCmd)

	entryCreateCmd.Flags().StringVar(&entryForm, "form", "", "Form the entry belongs to")
	entryCreateCmd.Flags().StringArrayVar(&entrySet, "set", nil, "Field value as key=value (repeatable)")
	entryCreateCmd.Flags().StringVar(&entryOwner, "owner", "", "Owner attribute")
	entryCreateCmd.MarkFlagRequired("form")

	entryUpdateCmd.Flags().StringArrayVar(&entrySet, "set", nil, "Field value as key=value (repeatable)")
	entryUpdateCmd.Flags().StringArrayVar(&entryUnset, "unset", nil, "Field to remove (repeatable)")
}

// parseAssignments turns key=value pairs into a field map
func parseAssignments(pairs []string) (models.FieldMap, error) {
	fields := make(models.FieldMap, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", p)
		}
		fields[key] = value
	}
	return fields, nil
}

func runEntryCreate(cmd *cobra.Command, args []string) {
	fields, err := parseAssignments(entrySet)
	if err != nil {
		exitError("%v", err)
	}

	c := initContext()
	defer c.Close()

	rec := &models.Record{FormID: entryForm, Fields: fields}
	if entryOwner != "" {
		rec.Attributes = map[string]interface{}{"owner_id": entryOwner}
	}
	id, err := c.App.Entries.CreateRecord(c.Ctx(), rec)
	if err != nil {
		exitError("failed to create entry: %v", err)
	}
	fmt.Println(id)
}

func runEntryUpdate(cmd *cobra.Command, args []string) {
	changes, err := parseAssignments(entrySet)
	if err != nil {
		exitError("%v", err)
	}
	for _, key := range entryUnset {
		changes[key] = nil
	}
	if len(changes) == 0 {
		exitError("nothing to update, use --set or --unset")
	}

	c := initContext()
	defer c.Close()

	ctx := c.Ctx()
	id := args[0]
	before, err := c.App.Manager.ListRevisionIDs(ctx, id)
	if err != nil {
		exitError("%v", err)
	}
	if _, err := c.App.Entries.UpdateFields(ctx, id, changes); err != nil {
		exitError("failed to update entry: %v", err)
	}

	latest, err := c.App.Manager.LatestRevision(ctx, id)
	if err != nil {
		exitError("%v", err)
	}
	if latest == nil || containsID(before, latest.ID()) {
		fmt.Println("No changes")
		return
	}
	color.New(color.FgYellow).Printf("revision %s", latest.ShortID())
	fmt.Printf(" (%d fields changed)\n", len(latest.Meta.ChangedFields))
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func runEntryShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	rec, err := c.App.Entries.GetRecord(c.Ctx(), args[0])
	if err != nil {
		exitError("entry not found: %s", args[0])
	}

	yellow := color.New(color.FgYellow)
	yellow.Printf("entry %s", rec.ID)
	if rec.IsRevision() {
		color.New(color.FgMagenta).Print(" [revision]")
	}
	fmt.Println()
	fmt.Printf("Form:    %s\n", rec.FormID)
	fmt.Printf("Created: %s\n", rec.DateCreated.Format("Mon Jan 2 15:04:05 2006"))
	fmt.Printf("Updated: %s\n", rec.DateUpdated.Format("Mon Jan 2 15:04:05 2006"))

	data, _ := json.MarshalIndent(rec.Fields, "    ", "  ")
	fmt.Printf("\n    %s\n", string(data))
	if len(rec.Attributes) > 0 {
		data, _ := json.MarshalIndent(rec.Attributes, "    ", "  ")
		fmt.Printf("\n  Attributes:\n    %s\n", string(data))
	}
}

func runEntryColumns(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	for _, col := range c.App.Entries.MetaColumns() {
		fmt.Printf("%-16s %s\n", col.Key, col.Label)
	}
}
