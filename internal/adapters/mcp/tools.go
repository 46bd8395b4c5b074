package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mewerton/universal-system/internal/core/ports"
)

// namespaceExamples must stay ids shipped in config/namespaces.yaml.
var namespaceExamples = []string{"supermercado", "farmacia"}

func namespaceHint() string {
	return "vertical id, e.g. " + strings.Join(namespaceExamples, " or ")
}

func (s *Server) registerTools() {
	s.server.AddTool(mcp.NewTool("list_namespaces",
		mcp.WithDescription("List the dashboard verticals and the state of their document indexes"),
	), s.handleListNamespaces)

	s.server.AddTool(mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question using only the documents indexed for one vertical"),
		mcp.WithString("namespace", mcp.Required(), mcp.Description(namespaceHint())),
		mcp.WithString("question", mcp.Required(), mcp.Description("question in natural language")),
	), s.handleAskDocuments)

	if s.ports.Uploader != nil {
		s.server.AddTool(mcp.NewTool("ingest_document",
			mcp.WithDescription("Index a local PDF file into a vertical"),
			mcp.WithString("namespace", mcp.Required(), mcp.Description(namespaceHint())),
			mcp.WithString("path", mcp.Required(), mcp.Description("absolute path of the PDF file")),
		), s.handleIngestDocument)
	}
}

func (s *Server) handleListNamespaces(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.ports.Catalog.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"namespaces": list})
}

func (s *Server) handleAskDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	namespace, err := req.RequireString("namespace")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.ports.Catalog.Resolve(namespace); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.session.Ask(ctx, namespace, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleIngestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	namespace, err := req.RequireString("namespace")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer f.Close()

	out, err := s.ports.Uploader.Upload(ctx, ports.UploadRequest{
		Namespace: namespace,
		Filename:  filepath.Base(path),
		MimeType:  "application/pdf",
		Body:      f,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if out.Answerer != nil {
		s.session.Bind(out.Answerer)
	}
	return jsonResult(map[string]any{"document": out.Document, "report": out.Report})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
