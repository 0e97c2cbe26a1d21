package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roslyn-stone/roslyn-stone/internal/config"
)

var validateConfigDirectory string

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Load and print the merged configuration as JSON",
	Long: `Loads global config, project config, .env overrides, and environment
variables in priority order and prints the merged result. A config file
that is missing or fails to parse is skipped; the other sources still
apply.`,
	RunE: runValidateConfig,
}

func init() {
	validateConfigCmd.Flags().StringVar(&validateConfigDirectory, "directory", "", "Project directory to load .roslyn-stone/config from")
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	workDir, err := getWorkDir(validateConfigDirectory)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
