// Package mcp exposes the HTTP request facility as Model Context Protocol
// tools served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/header"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/logger"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/brendan.keane/sqlhttp/internal/urlencode"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const defaultDescription = "Make HTTP requests and manage the runtime options of the HTTP session."

// Server serves the HTTP tools. Tool calls share one session and are
// serialized.
type Server struct {
	logger   zerolog.Logger
	config   *config.Config
	mcp      *server.MCPServer
	mu       sync.Mutex
	session  *session.Session
	executor httpinternal.HTTPExecutor
}

// NewServer creates a new MCP server
func NewServer(log zerolog.Logger, cfg *config.Config, opts ...httpinternal.ExecutorOption) (*Server, error) {
	sess, err := session.New(log, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:   logger.ForComponent(log, "mcp_server"),
		config:   cfg,
		session:  sess,
		executor: httpinternal.NewExecutor(log, sess, opts...),
	}
	s.mcp = server.NewMCPServer("sqlhttp", config.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(s.description()),
	)
	s.registerTools()
	return s, nil
}

func (s *Server) description() string {
	if s.config.MCP.Description != "" {
		return s.config.MCP.Description
	}
	return defaultDescription
}

// Start serves tools on stdin/stdout until the input closes
func (s *Server) Start() error {
	s.logger.Debug().Msg("MCP server started, reading from stdin")
	defer s.Close()
	if err := server.ServeStdio(s.mcp); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "MCP stdio server failed")
	}
	s.logger.Debug().Msg("MCP server stopped")
	return nil
}

// Close destroys the session's transport handle
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Close()
}

// Interrupt aborts the tool call in flight
func (s *Server) Interrupt() {
	s.session.Bridge().Interrupt()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("http_request",
		mcp.WithDescription("Perform one HTTP request. Non-2xx statuses are returned, not treated as errors."),
		mcp.WithString("method", mcp.Required(), mcp.Description("HTTP method, e.g. GET, POST, PUT, PATCH, DELETE, HEAD")),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Absolute http or https URI")),
		mcp.WithString("headers", mcp.Description("Request headers, one 'Field: value' per line")),
		mcp.WithString("content", mcp.Description("Request body")),
		mcp.WithString("content_type", mcp.Description("Body media type, required with content")),
		mcp.WithBoolean("include_headers", mcp.Description("Prefix the output with status and response headers")),
		mcp.WithString("regex", mcp.Description("Only return matches of this pattern with surrounding context")),
		mcp.WithNumber("context_lines", mcp.Description("Lines of context kept around regex matches (default 5)")),
		mcp.WithString("jmespath", mcp.Description("JMESPath expression applied to a JSON response")),
	), s.handleHTTPRequest)

	s.mcp.AddTool(mcp.NewTool("urlencode",
		mcp.WithDescription("Percent-encode text for a query string or form body"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to encode")),
	), s.handleURLEncode)

	s.mcp.AddTool(mcp.NewTool("urlencode_map",
		mcp.WithDescription("Encode the scalar members of a JSON object as key=value pairs joined by '&'"),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object")),
	), s.handleURLEncodeMap)

	s.mcp.AddTool(mcp.NewTool("set_option",
		mcp.WithDescription("Set a runtime transport option for subsequent requests"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Option name, e.g. CURLOPT_TIMEOUT_MS")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Option value")),
	), s.handleSetOption)

	s.mcp.AddTool(mcp.NewTool("list_options",
		mcp.WithDescription("List runtime options that have been set"),
	), s.handleListOptions)

	s.mcp.AddTool(mcp.NewTool("reset_options",
		mcp.WithDescription("Remove every runtime option"),
	), s.handleResetOptions)
}

func (s *Server) handleHTTPRequest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log := logger.ForMCP(s.logger, "http_request")

	request := &httpinternal.Request{
		Method:      strings.TrimSpace(req.GetString("method", "")),
		URI:         strings.TrimSpace(req.GetString("uri", "")),
		Headers:     header.Parse(req.GetString("headers", "")),
		ContentType: req.GetString("content_type", ""),
	}
	if content, ok := req.GetArguments()["content"].(string); ok {
		request.Content = []byte(content)
	}

	regexPattern := strings.TrimSpace(req.GetString("regex", ""))
	jmespathExpr := strings.TrimSpace(req.GetString("jmespath", ""))
	if regexPattern != "" && jmespathExpr != "" {
		return mcp.NewToolResultError("Cannot use both regex and jmespath filters simultaneously"), nil
	}

	log.Debug().
		Str("method", request.Method).
		Str("uri", request.URI).
		Int("headers", len(request.Headers)).
		Bool("has_content", request.Content != nil).
		Msg("executing HTTP request via MCP")

	s.mu.Lock()
	resp, err := s.executor.Execute(ctx, request)
	s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("HTTP request failed via MCP")
		return mcp.NewToolResultError(errors.UserMessage(err)), nil
	}

	body := string(resp.Content)
	var filtered *FilterResult
	switch {
	case regexPattern != "":
		filtered, err = filterRegex(body, regexPattern, int(req.GetFloat("context_lines", defaultContextLines)))
	case jmespathExpr != "":
		filtered, err = filterJMESPath(body, jmespathExpr)
	}
	if err != nil {
		return mcp.NewToolResultError(errors.UserMessage(err)), nil
	}
	if filtered != nil {
		body = filtered.Content
	}

	text := body
	if req.GetBool("include_headers", false) {
		text = formatHeaders(resp) + body
	}

	result := mcp.NewToolResultText(text)
	if filtered != nil {
		meta, err := json.Marshal(filtered.Meta)
		if err == nil {
			result.Content = append(result.Content, mcp.NewTextContent(string(meta)))
		}
	}
	return result, nil
}

// formatHeaders renders the status and header list the way the request
// command does with --include
func formatHeaders(resp *httpinternal.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP Status: %d\n", resp.Status)
	for _, e := range resp.Headers {
		fmt.Fprintf(&b, "%s: %s\n", e.Field, e.Value)
	}
	b.WriteString("\n")
	return b.String()
}

func (s *Server) handleURLEncode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(urlencode.Encode(text)), nil
}

func (s *Server) handleURLEncodeMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := req.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, _, err := urlencode.EncodeMap(data)
	if err != nil {
		return mcp.NewToolResultError(errors.UserMessage(err)), nil
	}
	return mcp.NewToolResultText(encoded), nil
}

func (s *Server) handleSetOption(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.session.SetOption(name, value); err != nil {
		return mcp.NewToolResultError(errors.UserMessage(err)), nil
	}
	return mcp.NewToolResultText("true"), nil
}

func (s *Server) handleListOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	options := s.session.ListOptions()
	s.mu.Unlock()

	data, err := json.Marshal(options)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode options")
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleResetOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.session.ResetOptions(); err != nil {
		return mcp.NewToolResultError(errors.UserMessage(err)), nil
	}
	return mcp.NewToolResultText("true"), nil
}
