package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mewerton/universal-system/internal/core/usecase"
)

const Version = "0.1.0"

// Server holds one conversation session for the lifetime of the stdio connection.
type Server struct {
	ports   *Ports
	session *usecase.Session
	server  *server.MCPServer
}

func NewServer(p *Ports) (*Server, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:   p,
		session: p.Sessions.Session(""),
		server:  server.NewMCPServer("universal-system", Version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// ServeStdio blocks until stdin is closed or the process receives a termination signal.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.server)
}
