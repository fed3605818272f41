package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/dirsync/internal/auth"
	"github.com/dl-alexandre/dirsync/internal/config"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"auth"},
	Short:   "FTP credential commands",
	Long: `Manage FTP passwords stored in the system keyring.

With --keyring, an ftp:// URL that names a user but no password is
completed from the entry stored for USER@HOST.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set USER@HOST",
	Short: "Store a password",
	Long:  "Read a password from standard input and store it for USER@HOST",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete USER@HOST",
	Short: "Remove a stored password",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsList,
}

func init() {
	rootCmd.AddCommand(credentialsCmd)

	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
}

// getConfigDir returns the configuration directory, falling back to
// ~/.config/dirsync when it cannot be resolved
func getConfigDir() string {
	dir, err := config.GetConfigDir()
	if err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", config.ConfigDirName)
}

// parseAccount splits USER@HOST at the last '@' so user names may contain one.
func parseAccount(account string) (user, host string, err error) {
	i := strings.LastIndex(account, "@")
	if i <= 0 || i == len(account)-1 {
		return "", "", invalidArgument(fmt.Sprintf("expected USER@HOST, got %q", account))
	}
	return account[:i], account[i+1:], nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.Output, flags.Quiet, flags.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

	user, host, err := parseAccount(args[0])
	if err != nil {
		return err
	}

	out.Log("Password for %s@%s: ", user, host)
	reader := bufio.NewReader(cmd.InOrStdin())
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		return invalidArgument("no password given on standard input")
	}
	password = strings.TrimRight(password, "\r\n")
	if password == "" {
		return invalidArgument("password must not be empty")
	}

	mgr := auth.NewManager(getConfigDir())
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.AddWarning("KEYRING_UNAVAILABLE", warning, "warning")
	}
	if err := mgr.SetPassword(user, host, password); err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIOError,
			fmt.Sprintf("failed to store password: %v", err)).Build(), err)
	}

	return out.WriteSuccess("credentials.set", map[string]interface{}{
		"account":        auth.CredentialKey(user, host),
		"storageBackend": mgr.GetStorageBackend(),
	})
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.Output, flags.Quiet, flags.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

	user, host, err := parseAccount(args[0])
	if err != nil {
		return err
	}

	mgr := auth.NewManager(getConfigDir())
	if err := mgr.DeletePassword(user, host); err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIOError,
			fmt.Sprintf("failed to delete password: %v", err)).Build(), err)
	}

	out.Log("Removed %s", auth.CredentialKey(user, host))
	return out.WriteSuccess("credentials.delete", map[string]interface{}{
		"account": auth.CredentialKey(user, host),
		"deleted": true,
	})
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.Output, flags.Quiet, flags.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

	mgr := auth.NewManager(getConfigDir())
	accounts, err := mgr.ListAccounts()
	if err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIOError,
			fmt.Sprintf("failed to list accounts: %v", err)).Build(), err)
	}
	if accounts == nil {
		accounts = []string{}
	}

	return out.WriteSuccess("credentials.list", map[string]interface{}{
		"accounts":       accounts,
		"count":          len(accounts),
		"storageBackend": mgr.GetStorageBackend(),
	})
}
