package cli

import (
	"fmt"
	"os"

	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Manage form definitions",
}

var formImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import a form definition",
	Long: `Import a form definition from YAML. Field labels are used when
rendering revision diffs; fields are shown in the order listed.

Example:
  id: contact
  title: Contact
  fields:
    - key: name
      label: Name
    - key: email
      label: Email`,
	Args: cobra.ExactArgs(1),
	Run:  runFormImport,
}

func init() {
	formCmd.AddCommand(formImportCmd)
}

func runFormImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("failed to read form: %v", err)
	}
	form, err := parseForm(data)
	if err != nil {
		exitError("%v", err)
	}

	c := initContext()
	defer c.Close()

	if err := c.App.Entries.SaveForm(c.Ctx(), form); err != nil {
		exitError("failed to save form: %v", err)
	}
	fmt.Printf("Imported form %s (%d fields)\n", form.ID, len(form.Fields))
}

// parseForm decodes and checks a YAML form definition
func parseForm(data []byte) (*models.Form, error) {
	var form models.Form
	if err := yaml.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	if form.ID == "" {
		return nil, fmt.Errorf("form id is required")
	}
	seen := make(map[string]bool, len(form.Fields))
	for _, f := range form.Fields {
		if f.Key == "" {
			return nil, fmt.Errorf("form %s: field without key", form.ID)
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("form %s: duplicate field %q", form.ID, f.Key)
		}
		seen[f.Key] = true
	}
	return &form, nil
}
