package cli

import (
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/dirsync/internal/config"
	"github.com/dl-alexandre/dirsync/internal/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Commands for inspecting dirsync configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show [DIRLEFT DIRRIGHT]",
	Short: "Show the effective configuration",
	Long:  "Display the configuration after merging defaults, the config file, DIRSYNC_* environment variables and flags",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.Output, flags.Quiet, flags.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(cmd.Flags(), flags.ConfigFile)
	if err != nil {
		return invalidArgument(err.Error())
	}
	if len(args) == 2 {
		cfg.Left, cfg.Right = args[0], args[1]
	}
	cfg.Left = displayPath(cfg.Left)
	cfg.Right = displayPath(cfg.Right)
	for _, w := range cfg.Warnings() {
		out.AddWarning(w.Code, w.Message, w.Severity)
	}

	return out.WriteSuccess("config.show", cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.Output, flags.Quiet, flags.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())

	path := flags.ConfigFile
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIOError, err.Error()).Build(), err)
		}
		path = p
	}
	return out.WriteSuccess("config.path", map[string]interface{}{
		"path": path,
	})
}
