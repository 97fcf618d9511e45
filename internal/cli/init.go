package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/kilupskalvis/entryrev/internal/app"
	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/kilupskalvis/entryrev/internal/weaviate"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an entryrev workspace",
	Long: `Initialize an entryrev workspace in the current directory.
This creates a .entryrev directory holding the configuration, the entry
database (SQLite backend) and the restore token ledger.`,
	Run: runInit,
}

var (
	initBackend     string
	initWeaviateURL string
	initActor       string
	initBaseURL     string
)

func init() {
	initCmd.Flags().StringVar(&initBackend, "backend", config.BackendSQLite, "Storage backend (sqlite|weaviate)")
	initCmd.Flags().StringVar(&initWeaviateURL, "weaviate-url", "http://localhost:8080", "Weaviate server URL")
	initCmd.Flags().StringVar(&initActor, "actor", os.Getenv("USER"), "Actor the CLI acts as")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", config.DefaultBaseURL, "Public URL of entryrev-server")
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	if _, err := config.FindRoot(); err == nil {
		exitError("entryrev workspace already exists")
	}

	cfg := config.Config{
		Backend:     initBackend,
		Actor:       initActor,
		BaseURL:     initBaseURL,
		TokenSecret: newSecret(),
	}
	if initActor != "" {
		cfg.Capabilities = map[string][]string{initActor: {security.CapabilityEditEntries}}
	}

	if initBackend == config.BackendWeaviate {
		cfg.WeaviateURL = initWeaviateURL
		fmt.Printf("Connecting to Weaviate at %s...\n", initWeaviateURL)

		client, err := weaviate.NewClient(initWeaviateURL)
		if err != nil {
			exitError("failed to create Weaviate client: %v", err)
		}
		if err := client.Ping(ctx); err != nil {
			exitError("failed to connect to Weaviate: %v", err)
		}
		version, err := client.GetServerVersion(ctx)
		if err != nil {
			fmt.Printf("Warning: Could not detect Weaviate version\n")
		} else {
			fmt.Printf("Weaviate version: %s\n", version.Version)
			if !version.SupportsCursor() {
				fmt.Printf("Warning: Server < 1.18, using offset pagination (slower for large datasets)\n")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}
	created, err := config.Initialize(wd, cfg)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	// Opening the app creates the schema
	a, err := app.New(ctx, created, newLogger())
	if err != nil {
		exitError("failed to initialize store: %v", err)
	}
	a.Close()

	fmt.Printf("Initialized entryrev workspace in %s/\n", config.Dir)
	fmt.Printf("Backend: %s\n", created.Backend)
	if created.Actor != "" {
		fmt.Printf("Acting as %s\n", created.Actor)
	}
}

// newSecret returns a random token signing secret
func newSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
