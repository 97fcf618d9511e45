package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/fatih/color"
	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/server"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage entryrev-server API tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <actor>",
	Short: "Create an API token acting as actor",
	Args:  cobra.ExactArgs(1),
	Run:   runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API tokens",
	Args:  cobra.NoArgs,
	Run:   runTokenList,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <token-id>",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	Run:   runTokenDelete,
}

var tokenDesc string

func init() {
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)

	tokenCreateCmd.Flags().StringVar(&tokenDesc, "desc", "", "Token description")
}

// openTokenStore loads the server token file without opening the backend
func openTokenStore() *server.FileTokenStore {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}
	tokens := server.NewFileTokenStore(cfg.TokensPath(), newLogger())
	if err := tokens.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		exitError("failed to load tokens: %v", err)
	}
	return tokens
}

func runTokenCreate(cmd *cobra.Command, args []string) {
	tokens := openTokenStore()
	raw, info, err := tokens.CreateToken(tokenDesc, args[0])
	if err != nil {
		exitError("failed to create token: %v", err)
	}

	fmt.Printf("Token ID: %s\n", info.ID)
	fmt.Printf("Actor:    %s\n", info.Actor)
	color.New(color.FgGreen).Printf("Token:    %s\n", raw)
	fmt.Println("\nStore this token now. It cannot be shown again.")
}

func runTokenList(cmd *cobra.Command, args []string) {
	list, err := openTokenStore().ListTokens()
	if err != nil {
		exitError("failed to list tokens: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No tokens")
		return
	}
	for _, t := range list {
		fmt.Printf("%s  %-12s %s  %s\n", t.ID, t.Actor, t.CreatedAt.Format("2006-01-02"), t.Desc)
	}
}

func runTokenDelete(cmd *cobra.Command, args []string) {
	if err := openTokenStore().DeleteToken(args[0]); err != nil {
		exitError("failed to delete token: %v", err)
	}
	fmt.Printf("Deleted token %s\n", args[0])
}
