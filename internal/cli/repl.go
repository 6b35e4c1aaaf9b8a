package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
)

// commandExecutionTimeout bounds a single REPL command.
const commandExecutionTimeout = 5 * time.Minute

const prompt = "toolgate » "

var errExit = errors.New("exit")

// REPL is an interactive loop for exploring and invoking gateway tools.
type REPL struct {
	executor *ToolExecutor
	out      io.Writer
	history  string

	mu        sync.RWMutex
	toolNames []string
}

// NewREPL creates a REPL on top of executor. History is kept in the user's
// temp directory.
func NewREPL(executor *ToolExecutor) *REPL {
	return &REPL{
		executor: executor,
		out:      executor.options.Out,
		history:  filepath.Join(os.TempDir(), ".toolgate_history"),
	}
}

// Run reads commands until EOF, exit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	r.refreshToolNames(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     r.history,
		AutoComplete:    r.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(r.out, "Type 'help' for available commands. Use TAB for completion.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		cmdCtx, cancel := context.WithTimeout(ctx, commandExecutionTimeout)
		err = r.executeCommand(cmdCtx, input)
		cancel()
		if errors.Is(err, errExit) {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}
		if err != nil {
			var resultErr *ResultError
			if !errors.As(err, &resultErr) {
				fmt.Fprintf(r.out, "%s\n", text.FgRed.Sprintf("Error: %v", err))
			}
		}
		fmt.Fprintln(r.out)
	}
}

// executeCommand runs one line of input.
func (r *REPL) executeCommand(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	switch strings.ToLower(parts[0]) {
	case "help", "?":
		r.printHelp()
		return nil
	case "list", "tools":
		err := r.executor.ListTools(ctx)
		if err == nil {
			r.refreshToolNames(ctx)
		}
		return err
	case "describe":
		if len(parts) < 2 {
			return fmt.Errorf("usage: describe <tool>")
		}
		return r.executor.DescribeTool(ctx, parts[1])
	case "call", "invoke":
		if len(parts) < 2 {
			return fmt.Errorf("usage: call <tool> [json-arguments | key=value ...]")
		}
		args, err := callArguments(parts[2:])
		if err != nil {
			return err
		}
		return r.executor.Execute(ctx, parts[1], args)
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}
}

// callArguments accepts either a JSON object or key=value pairs.
func callArguments(rest []string) (map[string]any, error) {
	if len(rest) > 0 && strings.HasPrefix(rest[0], "{") {
		return ParseArguments(strings.Join(rest, " "), nil)
	}
	return ParseArguments("", rest)
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  list                                   List the gateway's tools")
	fmt.Fprintln(r.out, "  describe <tool>                        Show a tool and its input schema")
	fmt.Fprintln(r.out, "  call <tool> [json | key=value ...]     Invoke a tool")
	fmt.Fprintln(r.out, "  help                                   Show this help")
	fmt.Fprintln(r.out, "  exit                                   Leave the REPL")
}

func (r *REPL) refreshToolNames(ctx context.Context) {
	tools, err := r.executor.Tools(ctx)
	if err != nil {
		return
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)

	r.mu.Lock()
	r.toolNames = names
	r.mu.Unlock()
}

func (r *REPL) completeToolNames(string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.toolNames...)
}

func (r *REPL) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("list"),
		readline.PcItem("describe", readline.PcItemDynamic(r.completeToolNames)),
		readline.PcItem("call", readline.PcItemDynamic(r.completeToolNames)),
		readline.PcItem("exit"),
	)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
