// Command roslyn-stone runs the Roslyn-Stone MCP server: a stateful,
// sandboxed C# scripting REPL exposed over the Model Context Protocol.
package main

import (
	"fmt"
	"os"

	"github.com/roslyn-stone/roslyn-stone/cmd/roslyn-stone/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
