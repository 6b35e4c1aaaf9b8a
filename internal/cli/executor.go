package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/toolgate/internal/gateway"
)

// ToolSession is the part of a gateway session the executor drives.
type ToolSession interface {
	DiscoverTools(ctx context.Context) ([]gateway.ToolSchema, error)
	FindTool(ctx context.Context, name string) (gateway.ToolSchema, error)
	Invoke(ctx context.Context, name string, args map[string]any) (gateway.InvocationResult, error)
}

// ExecutorOptions controls output of a ToolExecutor.
type ExecutorOptions struct {
	// Format specifies the output format (table, json, yaml)
	Format OutputFormat
	// NoHeaders suppresses table header rows
	NoHeaders bool
	// Quiet suppresses the progress spinner
	Quiet bool
	// Out receives results. Defaults to os.Stdout.
	Out io.Writer
	// ErrOut receives progress and failure notes. Defaults to os.Stderr.
	ErrOut io.Writer
}

// ResultError is returned by Execute when the gateway answered with an
// error result. The result itself has already been printed.
type ResultError struct {
	Tool   string
	Result gateway.InvocationResult
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("tool %s failed with status %d", e.Tool, e.Result.StatusCode)
}

// ToolExecutor runs client operations against a session and prints them.
type ToolExecutor struct {
	session ToolSession
	printer *Printer
	options ExecutorOptions
}

// NewToolExecutor creates an executor for session.
func NewToolExecutor(session ToolSession, options ExecutorOptions) *ToolExecutor {
	if options.Out == nil {
		options.Out = os.Stdout
	}
	if options.ErrOut == nil {
		options.ErrOut = os.Stderr
	}
	return &ToolExecutor{
		session: session,
		printer: NewPrinter(options.Out, options.Format, options.NoHeaders),
		options: options,
	}
}

// Printer returns the printer the executor writes to.
func (e *ToolExecutor) Printer() *Printer {
	return e.printer
}

// Tools returns the discovered tools without printing them.
func (e *ToolExecutor) Tools(ctx context.Context) ([]gateway.ToolSchema, error) {
	return e.session.DiscoverTools(ctx)
}

// ListTools prints the gateway's tools.
func (e *ToolExecutor) ListTools(ctx context.Context) error {
	tools, err := e.session.DiscoverTools(ctx)
	if err != nil {
		return err
	}
	return e.printer.Tools(tools)
}

// DescribeTool prints the tool that name matches.
func (e *ToolExecutor) DescribeTool(ctx context.Context, name string) error {
	tool, err := e.session.FindTool(ctx, name)
	if err != nil {
		return err
	}
	return e.printer.Tool(tool)
}

// Execute invokes a tool and prints the result. An error result is printed
// and reported as a *ResultError.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args map[string]any) error {
	s := e.startSpinner(fmt.Sprintf(" Invoking %s...", name))
	result, err := e.session.Invoke(ctx, name, args)
	e.stopSpinner(s)

	if err != nil {
		if !e.options.Quiet {
			fmt.Fprintf(e.options.ErrOut, "%s\n", text.FgRed.Sprint("✗ Invocation failed"))
		}
		return err
	}

	if err := e.printer.Result(result); err != nil {
		return err
	}
	if result.IsError {
		return &ResultError{Tool: name, Result: result}
	}
	return nil
}

func (e *ToolExecutor) startSpinner(suffix string) *spinner.Spinner {
	if e.options.Quiet {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(e.options.ErrOut))
	s.Suffix = suffix
	s.Start()
	return s
}

func (e *ToolExecutor) stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
