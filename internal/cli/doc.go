// Package cli renders toolgate client operations for a terminal.
//
// ToolExecutor wraps a gateway session: it lists and describes tools and
// invokes them with a progress spinner, handing every result to a Printer.
// The Printer supports three output formats:
//   - table: rounded go-pretty tables with a colored status line
//   - json: the result envelope as indented JSON
//   - yaml: the same envelope converted to YAML
//
// REPL is an interactive loop on top of the executor with tab completion of
// tool names and persistent history.
//
// Tool arguments are given either as a JSON object or as key=value pairs;
// values that parse as JSON keep their JSON type, everything else is a
// string. See ParseArguments.
package cli
