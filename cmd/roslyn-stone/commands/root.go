// Package commands provides the CLI commands for the roslyn-stone binary.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roslyn-stone/roslyn-stone/internal/logging"
)

var (
	// Version is set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs bool
	logLevel  string
	logFile   bool
)

var rootCmd = &cobra.Command{
	Use:   "roslyn-stone",
	Short: "Roslyn-Stone - sandboxed C# scripting MCP server",
	Long: `Roslyn-Stone runs C# snippets in a stateful, sandboxed REPL and
exposes it over the Model Context Protocol.

Run 'roslyn-stone serve' to start the server over stdio or http.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to a timestamped file")

	rootCmd.SetVersionTemplate(fmt.Sprintf("roslyn-stone %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateConfigCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
