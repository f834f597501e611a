// Package mcp exposes registered facade tools over the Model Context
// Protocol so an external agent platform can bind them by name.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"

	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/infrastructure/logging"
)

// Server wraps an MCP server over a tool registry. Every registered tool is
// exposed with its name and instruction text; tool output is the envelope
// JSON, so platform-side callers always get a parseable result.
type Server struct {
	srv      *mcpgo.Server
	registry tool.Registry
	runner   Runner
	info     mcpgo.ServerInfo
}

// Runner dispatches tool calls by name. application.Executor satisfies it;
// wiring one routes every MCP call through the executor's middleware chain.
type Runner interface {
	Execute(ctx context.Context, name string, input json.RawMessage) json.RawMessage
}

// ServerConfig configures the MCP exposure.
type ServerConfig struct {
	// Name is the server name announced to clients.
	Name string

	// Version is the server version.
	Version string

	// Registry holds the tools to expose (required).
	Registry tool.Registry

	// Description is an optional server description.
	Description string

	// Instructions provides usage instructions for clients.
	Instructions string

	// Runner dispatches calls. When nil, tools execute directly.
	Runner Runner
}

// NewServer creates an MCP server exposing every tool in the registry.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	s := &Server{
		srv:      mcpgo.NewServer(info, opts...),
		registry: cfg.Registry,
		runner:   cfg.Runner,
		info:     info,
	}

	for _, t := range cfg.Registry.List() {
		s.expose(t)
	}

	return s, nil
}

// expose binds one tool into the MCP server.
func (s *Server) expose(t tool.Tool) {
	name := t.Name()
	handler := func(ctx context.Context, input json.RawMessage) (string, error) {
		if s.runner != nil {
			return string(s.runner.Execute(ctx, name, input)), nil
		}
		out, err := t.Execute(ctx, input)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	s.srv.Tool(t.Name()).
		Description(t.Instruction()).
		Handler(handler)
}

// Register adds a tool with drop-then-create semantics and exposes it.
// Registering the same name twice leaves exactly one active binding.
func (s *Server) Register(t tool.Tool) error {
	if err := s.registry.Replace(t); err != nil {
		return fmt.Errorf("replace tool %s: %w", t.Name(), err)
	}
	s.expose(t)

	logging.Debug().
		Add(logging.ToolName(t.Name())).
		Msg("tool exposed over mcp")
	return nil
}

// Server returns the underlying mcp-go server.
func (s *Server) Server() *mcpgo.Server {
	return s.srv
}

// Use adds middleware to the server.
func (s *Server) Use(middlewares ...mcpserver.Middleware) {
	s.srv.Use(middlewares...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	logging.Info().
		Add(logging.Component("mcp")).
		Add(logging.Count(len(s.registry.Names()))).
		Msg("serving tools over stdio")
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP with SSE.
func (s *Server) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	logging.Info().
		Add(logging.Component("mcp")).
		Add(logging.Str("addr", addr)).
		Add(logging.Count(len(s.registry.Names()))).
		Msg("serving tools over http")
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
