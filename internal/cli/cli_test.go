package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/oauth"
)

const costToolName = "AWSCostEstimationLambdaTarget___aws_cost_estimation"

type fakeSession struct {
	tools  []gateway.ToolSchema
	result gateway.InvocationResult
	err    error

	calledName string
	calledArgs map[string]any
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		tools: []gateway.ToolSchema{{
			Name:        costToolName,
			Description: "Estimate the monthly AWS cost of an architecture",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"architecture_description":{"type":"string"}},"required":["architecture_description"]}`),
		}},
		result: gateway.InvocationResult{StatusCode: 200, Body: json.RawMessage(`{"monthly_total":"42.10","currency":"USD"}`)},
	}
}

func (f *fakeSession) DiscoverTools(context.Context) ([]gateway.ToolSchema, error) {
	return f.tools, nil
}

func (f *fakeSession) FindTool(_ context.Context, name string) (gateway.ToolSchema, error) {
	for _, t := range f.tools {
		if t.Name == name || gateway.ToolName(t.Name) == name {
			return t, nil
		}
	}
	return gateway.ToolSchema{}, errors.New("tool not found: " + name)
}

func (f *fakeSession) Invoke(_ context.Context, name string, args map[string]any) (gateway.InvocationResult, error) {
	f.calledName = name
	f.calledArgs = args
	return f.result, f.err
}

func newTestExecutor(session ToolSession, format OutputFormat) (*ToolExecutor, *bytes.Buffer) {
	var out bytes.Buffer
	return NewToolExecutor(session, ExecutorOptions{
		Format: format,
		Quiet:  true,
		Out:    &out,
		ErrOut: &bytes.Buffer{},
	}), &out
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"architecture_description":"ALB","count":1}`, []string{"count=3", `region="eu-west-1"`, "tags=[\"a\",\"b\"]"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"architecture_description": "ALB",
		"count":                    float64(3),
		"region":                   "eu-west-1",
		"tags":                     []any{"a", "b"},
	}, args)

	args, err = ParseArguments("", nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = ParseArguments("[1,2]", nil)
	assert.Error(t, err)

	_, err = ParseArguments("", []string{"novalue"})
	assert.Error(t, err)

	_, err = ParseArguments("", []string{"=x"})
	assert.Error(t, err)
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		assert.NoError(t, ValidateOutputFormat(f))
	}
	assert.Error(t, ValidateOutputFormat("wide"))
}

func TestExecutor_ListTools(t *testing.T) {
	e, out := newTestExecutor(newFakeSession(), OutputFormatTable)
	require.NoError(t, e.ListTools(context.Background()))
	assert.Contains(t, out.String(), costToolName)
	assert.Contains(t, out.String(), "architecture_description")

	e, out = newTestExecutor(newFakeSession(), OutputFormatJSON)
	require.NoError(t, e.ListTools(context.Background()))
	var tools []gateway.ToolSchema
	require.NoError(t, json.Unmarshal(out.Bytes(), &tools))
	assert.Equal(t, costToolName, tools[0].Name)
}

func TestExecutor_ListToolsEmpty(t *testing.T) {
	e, out := newTestExecutor(&fakeSession{}, OutputFormatTable)
	require.NoError(t, e.ListTools(context.Background()))
	assert.Contains(t, out.String(), "No tools found")
}

func TestExecutor_DescribeTool(t *testing.T) {
	e, out := newTestExecutor(newFakeSession(), OutputFormatTable)
	require.NoError(t, e.DescribeTool(context.Background(), "aws_cost_estimation"))
	assert.Contains(t, out.String(), costToolName)
	assert.Contains(t, out.String(), `"required": [`)

	assert.Error(t, e.DescribeTool(context.Background(), "nope"))
}

func TestExecutor_Execute(t *testing.T) {
	session := newFakeSession()
	e, out := newTestExecutor(session, OutputFormatTable)

	args := map[string]any{"architecture_description": "ALB"}
	require.NoError(t, e.Execute(context.Background(), "aws_cost_estimation", args))
	assert.Equal(t, "aws_cost_estimation", session.calledName)
	assert.Equal(t, args, session.calledArgs)
	assert.Contains(t, out.String(), "status 200")
	assert.Contains(t, out.String(), "monthly_total")
	assert.Contains(t, out.String(), "42.10")
}

func TestExecutor_ExecuteFormats(t *testing.T) {
	e, out := newTestExecutor(newFakeSession(), OutputFormatJSON)
	require.NoError(t, e.Execute(context.Background(), "aws_cost_estimation", nil))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, float64(200), decoded["statusCode"])
	assert.Equal(t, map[string]any{"monthly_total": "42.10", "currency": "USD"}, decoded["body"])

	e, out = newTestExecutor(newFakeSession(), OutputFormatYAML)
	require.NoError(t, e.Execute(context.Background(), "aws_cost_estimation", nil))
	assert.Contains(t, out.String(), "statusCode: 200")
	assert.Contains(t, out.String(), "currency: USD")
}

func TestExecutor_ExecuteErrorResult(t *testing.T) {
	session := newFakeSession()
	session.result = gateway.InvocationResult{StatusCode: 400, Body: "Missing required parameter: architecture_description", IsError: true}
	e, out := newTestExecutor(session, OutputFormatTable)

	err := e.Execute(context.Background(), "aws_cost_estimation", nil)
	var resultErr *ResultError
	require.ErrorAs(t, err, &resultErr)
	assert.Equal(t, 400, resultErr.Result.StatusCode)
	assert.Contains(t, out.String(), "status 400")
	assert.Contains(t, out.String(), "Missing required parameter")
}

func TestExecutor_ExecuteSessionError(t *testing.T) {
	session := newFakeSession()
	session.err = errors.New("boom")
	e, out := newTestExecutor(session, OutputFormatTable)

	assert.EqualError(t, e.Execute(context.Background(), "x", nil), "boom")
	assert.Empty(t, out.String())
}

func TestPrinter_NeverPrintsTokenValue(t *testing.T) {
	now := time.Now()
	token := &oauth.Token{
		Value:     oauth.NewRedactedToken("super-secret-access-token"),
		TokenType: "Bearer",
		Scopes:    []string{"gateway/invoke"},
		ExpiresAt: now.Add(90 * time.Second),
	}
	info := NewTokenInfo("cognito", token, now)
	assert.Equal(t, "1m30s", info.ExpiresIn)

	for _, format := range []OutputFormat{OutputFormatTable, OutputFormatJSON, OutputFormatYAML} {
		var out bytes.Buffer
		require.NoError(t, NewPrinter(&out, format, false).Token(info))
		assert.Contains(t, out.String(), "cognito")
		assert.NotContains(t, out.String(), "super-secret-access-token")
	}

	expired := NewTokenInfo("cognito", token, now.Add(time.Hour))
	assert.Equal(t, "0s", expired.ExpiresIn)
}

func TestREPL_ExecuteCommand(t *testing.T) {
	session := newFakeSession()
	e, out := newTestExecutor(session, OutputFormatTable)
	r := NewREPL(e)
	ctx := context.Background()

	require.NoError(t, r.executeCommand(ctx, "help"))
	assert.Contains(t, out.String(), "Available commands")

	out.Reset()
	require.NoError(t, r.executeCommand(ctx, "list"))
	assert.Contains(t, out.String(), costToolName)
	assert.Equal(t, []string{costToolName}, r.completeToolNames(""))

	require.NoError(t, r.executeCommand(ctx, `call aws_cost_estimation {"architecture_description": "ALB + 2x EC2"}`))
	assert.Equal(t, map[string]any{"architecture_description": "ALB + 2x EC2"}, session.calledArgs)

	require.NoError(t, r.executeCommand(ctx, "call aws_cost_estimation architecture_description=ALB"))
	assert.Equal(t, map[string]any{"architecture_description": "ALB"}, session.calledArgs)

	assert.Error(t, r.executeCommand(ctx, "call"))
	assert.Error(t, r.executeCommand(ctx, "describe"))
	assert.Error(t, r.executeCommand(ctx, "frobnicate"))
	assert.ErrorIs(t, r.executeCommand(ctx, "exit"), errExit)
	assert.ErrorIs(t, r.executeCommand(ctx, "QUIT"), errExit)
	assert.NoError(t, r.executeCommand(ctx, "   "))
}
