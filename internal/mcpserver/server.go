// Package mcpserver exposes the research assistant and the workspace as MCP
// (Model Context Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/atelier/internal/assistant"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/store"
	"github.com/starford/atelier/internal/workspace"
)

// Assistant answers questions and summarizes sources.
type Assistant interface {
	Converse(ctx context.Context, req assistant.ChatRequest) (assistant.ChatResponse, error)
	Summarize(ctx context.Context, ownerID string, src models.Source) (string, error)
}

// Workspace is the record side the tools read and write.
type Workspace interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	ListSources(ctx context.Context, f store.SourceFilter) ([]models.Source, error)
	Upload(ctx context.Context, in workspace.UploadInput) (*models.Source, error)
	CreateNote(ctx context.Context, in workspace.NoteInput) (*models.Note, error)
	SaveAnswer(ctx context.Context, in workspace.AnswerInput) (*models.Note, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]store.SearchResult, error)
}

// Server wraps the MCP server with Atelier tools.
type Server struct {
	mcp     *server.MCPServer
	ai      Assistant
	ws      Workspace
	ownerID string
	fetch   func(ctx context.Context, rawURL string) ([]byte, string, error)
}

// New creates an MCP server acting on behalf of ownerID.
func New(ai Assistant, ws Workspace, ownerID string) *Server {
	s := &Server{ai: ai, ws: ws, ownerID: ownerID, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"Atelier",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask the research assistant a question grounded in the workspace's "+
			"tasks, notes and documents. With two or more source_ids the documents are analyzed "+
			"together for themes, contradictions and connections."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to ask")),
		mcp.WithString("project_id", mcp.Description("Optional project to scope the context to")),
		mcp.WithString("source_ids", mcp.Description("Optional comma-separated source ids to use as documents")),
		mcp.WithString("intent", mcp.Description("Optional: qa or insight")),
		mcp.WithBoolean("save", mcp.Description("Save the answer as a note")),
	), s.askAssistant)

	s.mcp.AddTool(mcp.NewTool("summarize_source",
		mcp.WithDescription("Summarize one source document: main topics, key points and conclusions."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Id of the source to summarize")),
	), s.summarizeSource)

	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List source documents, newest first."),
		mcp.WithString("project_id", mcp.Description("Optional project filter")),
		mcp.WithString("query", mcp.Description("Optional substring match on the source name")),
	), s.listSources)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Create a note. Read the usage guide (get_usage_guide) for the accepted formats."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body")),
		mcp.WithString("format", mcp.Description("markdown (default) or html")),
		mcp.WithString("project_id", mcp.Description("Optional project id")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("add_source",
		mcp.WithDescription("Add a document to the workspace from an http(s) URL or a base64 data URI. "+
			"Supported: pdf, txt, md, html, csv."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		mcp.WithString("project_id", mcp.Description("Optional project id")),
	), s.addSource)

	s.mcp.AddTool(mcp.NewTool("get_usage_guide",
		mcp.WithDescription("Returns the guide for working with Atelier tools."),
	), s.getUsageGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Atelier Usage Guide",
			mcp.WithResourceDescription("How sources, notes and the assistant fit together."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optionalString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) askAssistant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	explicit, err := assistant.ParseIntent(optionalString(req, "intent"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := splitIDs(optionalString(req, "source_ids"))
	projectID := optionalString(req, "project_id")

	resp, err := s.ai.Converse(ctx, assistant.ChatRequest{
		OwnerID:   s.ownerID,
		Messages:  []models.Message{{Role: models.RoleUser, Content: question}},
		ProjectID: projectID,
		SourceIDs: ids,
		Intent:    assistant.DeriveIntent(explicit, ids),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if save, bErr := req.RequireBool("save"); bErr == nil && save {
		if _, err := s.ws.SaveAnswer(ctx, workspace.AnswerInput{
			Question:  question,
			Answer:    resp.Message,
			Sources:   resp.Sources,
			ProjectID: projectID,
		}); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("answer produced but not saved: %v", err)), nil
		}
	}
	return jsonResult(resp), nil
}

func (s *Server) summarizeSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := s.ws.GetSource(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("source not found: %s", id)), nil
	}
	summary, err := s.ai.Summarize(ctx, s.ownerID, *src)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) listSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	srcs, err := s.ws.ListSources(ctx, store.SourceFilter{
		ProjectID: optionalString(req, "project_id"),
		Query:     optionalString(req, "query"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(srcs) == 0 {
		return mcp.NewToolResultText("no sources found"), nil
	}
	var sb strings.Builder
	for _, src := range srcs {
		fmt.Fprintf(&sb, "%s\t%s\t%s\n", src.ID, src.Name, src.MimeType)
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.ws.SearchNotes(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := models.NoteFormat(optionalString(req, "format"))
	if format == "" {
		format = models.NoteFormatMarkdown
	}
	n, err := s.ws.CreateNote(ctx, workspace.NoteInput{
		Title:     title,
		Content:   content,
		Format:    format,
		ProjectID: optionalString(req, "project_id"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) getUsageGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UsageGuide), nil
}

func (s *Server) readGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     UsageGuide,
		},
	}, nil
}
