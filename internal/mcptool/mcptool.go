package mcptool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sudankdk/judge/internal/languages"
	"github.com/sudankdk/judge/internal/model"
)

const maxTextLen = 4000

// Submitter runs a submission to completion.
type Submitter interface {
	Submit(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionOutcome, error)
}

// NewServer returns an MCP server exposing the code_run tool.
func NewServer(exec Submitter, specs []languages.Spec, version string) *server.MCPServer {
	s := server.NewMCPServer("judge", version)
	s.AddTool(Tool(specs), Handler(exec))
	return s
}

// Serve runs the MCP server over stdio until stdin closes.
func Serve(exec Submitter, specs []languages.Spec, version string) error {
	return server.ServeStdio(NewServer(exec, specs, version))
}

func Tool(specs []languages.Spec) mcp.Tool {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return mcp.Tool{
		Name:        "code_run",
		Description: fmt.Sprintf("Compile and run a program with piped standard input. Supported languages: %s.", strings.Join(names, ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language name or alias (" + strings.Join(names, ", ") + ")",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Standard input to provide to the program (optional)",
				},
			},
			Required: []string{"language", "code"},
		},
	}
}

func Handler(exec Submitter) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		language, _ := args["language"].(string)
		code, _ := args["code"].(string)
		stdin, _ := args["stdin"].(string)

		outcome, err := exec.Submit(ctx, model.ExecutionRequest{Language: language, Source: code, Stdin: stdin})
		switch {
		case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrUnsupportedLanguage):
			return errResult("error: " + err.Error()), nil
		case err != nil:
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: render(outcome)}},
			IsError: !outcome.Success(),
		}, nil
	}
}

func render(o *model.ExecutionOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", o.Status)
	if out := o.Output(); out != "" {
		b.WriteString(out)
		b.WriteString("\n")
	}
	if o.Stderr != "" {
		b.WriteString("STDERR:\n" + o.Stderr)
	}
	if !o.Success() && o.Diagnostic != "" && o.Diagnostic != strings.TrimSpace(o.Stderr) {
		b.WriteString("\nerror: " + o.Diagnostic)
	}
	if o.ExitCode != nil && *o.ExitCode != 0 {
		fmt.Fprintf(&b, "\nexit code: %d", *o.ExitCode)
	}

	text := strings.TrimRight(b.String(), "\n")
	if len(text) > maxTextLen {
		text = truncate(text, maxTextLen) + "\n... (output truncated)"
	}
	return text
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
