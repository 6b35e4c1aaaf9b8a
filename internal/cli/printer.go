package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"

	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/oauth"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputFormatTable renders go-pretty tables
	OutputFormatTable OutputFormat = "table"
	// OutputFormatJSON renders indented JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML renders YAML converted from the JSON form
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidateOutputFormat reports an error for unsupported formats.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, json, yaml)", format)
	}
}

const maxCellWidth = 100

// Printer writes tools, results and token metadata in one output format.
type Printer struct {
	out       io.Writer
	format    OutputFormat
	noHeaders bool
}

// NewPrinter creates a Printer. An empty format means table.
func NewPrinter(out io.Writer, format OutputFormat, noHeaders bool) *Printer {
	if format == "" {
		format = OutputFormatTable
	}
	return &Printer{out: out, format: format, noHeaders: noHeaders}
}

// TokenInfo is the printable metadata of a token. It never holds the
// token value.
type TokenInfo struct {
	Provider  string    `json:"provider"`
	TokenType string    `json:"tokenType"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn string    `json:"expiresIn"`
}

// NewTokenInfo describes token relative to now.
func NewTokenInfo(provider string, token *oauth.Token, now time.Time) TokenInfo {
	remaining := token.ExpiresAt.Sub(now).Truncate(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return TokenInfo{
		Provider:  provider,
		TokenType: token.TokenType,
		Scopes:    append([]string{}, token.Scopes...),
		ExpiresAt: token.ExpiresAt,
		ExpiresIn: remaining.String(),
	}
}

// Tools prints a tool listing.
func (p *Printer) Tools(tools []gateway.ToolSchema) error {
	if p.format != OutputFormatTable {
		return p.structured(tools)
	}
	if len(tools) == 0 {
		fmt.Fprintf(p.out, "%s\n", text.FgYellow.Sprint("No tools found"))
		return nil
	}

	t := p.newTable()
	p.header(t, "NAME", "DESCRIPTION", "REQUIRED")
	for _, tool := range tools {
		t.AppendRow(table.Row{tool.Name, truncate(tool.Description), strings.Join(requiredOf(tool), ", ")})
	}
	t.Render()
	return nil
}

// Tool prints a single tool with its input schema.
func (p *Printer) Tool(tool gateway.ToolSchema) error {
	if p.format != OutputFormatTable {
		return p.structured(tool)
	}

	t := p.newTable()
	p.header(t, "FIELD", "VALUE")
	t.AppendRow(table.Row{"name", tool.Name})
	t.AppendRow(table.Row{"description", tool.Description})
	t.AppendRow(table.Row{"required", strings.Join(requiredOf(tool), ", ")})
	t.Render()

	schema, err := indentJSON(tool.InputSchema)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "%s\n%s\n", text.FgHiBlue.Sprint("Input schema:"), schema)
	return nil
}

// Result prints an invocation result. In table format a status line goes
// first and object bodies are shown as key/value rows.
func (p *Printer) Result(result gateway.InvocationResult) error {
	if p.format != OutputFormatTable {
		return p.structured(result)
	}

	if result.IsError {
		fmt.Fprintf(p.out, "%s\n", text.FgRed.Sprintf("✗ status %d", result.StatusCode))
		fmt.Fprintln(p.out, result.BodyText())
		return nil
	}
	fmt.Fprintf(p.out, "%s\n", text.FgGreen.Sprintf("✓ status %d", result.StatusCode))

	var obj map[string]any
	if err := json.Unmarshal([]byte(result.BodyText()), &obj); err != nil || obj == nil {
		fmt.Fprintln(p.out, result.BodyText())
		return nil
	}

	t := p.newTable()
	p.header(t, "KEY", "VALUE")
	for _, key := range sortedKeys(obj) {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(key), truncate(cellText(obj[key]))})
	}
	t.Render()
	return nil
}

// Token prints token metadata.
func (p *Printer) Token(info TokenInfo) error {
	if p.format != OutputFormatTable {
		return p.structured(info)
	}

	t := p.newTable()
	p.header(t, "PROVIDER", "TYPE", "SCOPES", "EXPIRES IN")
	t.AppendRow(table.Row{info.Provider, info.TokenType, strings.Join(info.Scopes, " "), info.ExpiresIn})
	t.Render()
	return nil
}

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Version prints build information. Table format is a single line.
func (p *Printer) Version(info VersionInfo) error {
	if p.format != OutputFormatTable {
		return p.structured(info)
	}
	_, err := fmt.Fprintf(p.out, "toolgate version %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	return err
}

func (p *Printer) structured(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if p.format == OutputFormatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to convert to YAML: %w", err)
		}
		_, err = p.out.Write(data)
		return err
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (p *Printer) header(t table.Writer, names ...string) {
	if p.noHeaders {
		return
	}
	row := make(table.Row, len(names))
	for i, n := range names {
		row[i] = text.FgHiCyan.Sprint(n)
	}
	t.AppendHeader(row)
}

func requiredOf(tool gateway.ToolSchema) []string {
	var schema struct {
		Required []string `json:"required"`
	}
	_ = json.Unmarshal(tool.InputSchema, &schema)
	return schema.Required
}

func indentJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid input schema: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

// truncate collapses whitespace to keep cells on one line and shortens s to
// maxCellWidth runes.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxCellWidth {
		return string(runes[:maxCellWidth-3]) + "..."
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
