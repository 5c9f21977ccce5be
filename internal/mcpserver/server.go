// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note graph as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ta21cos/thread-type-note-app/internal/apperr"
	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
)

const noteFormatURI = "threadnote://note-format"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all note tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"threadnote",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note, or a reply when parent_id is given. "+
			"Mention other notes with @ followed by their 6-character id. "+
			"Read the contract first via get_note_contract or the "+noteFormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text, 1-1000 characters")),
		mcp.WithString("parent_id", mcp.Description("Id of the note being replied to")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace a note's content. Mentions are recomputed; edits that would make "+
			"mentions circular are rejected."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New note text")),
		mcp.WithString("if_match", mcp.Description("Checksum of the content being replaced")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("get_thread",
		mcp.WithDescription("Return the whole thread containing a note, root first, ordered by depth then time."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Any note id in the thread")),
	), s.getThread)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note together with all of its replies and every mention touching them."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by content, or with type=mention find notes mentioning the note id in query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text or note id")),
		mcp.WithString("type", mcp.Description("content (default) or mention")),
		mcp.WithNumber("limit", mcp.Description("Max results (default: 20, max: 100)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_mentions",
		mcp.WithDescription("List the notes that mention a note, with the character offset of each mention."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.getMentions)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Rules for note content, replies and mentions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// toolError turns domain errors into messages a model can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrParentNotFound):
		return mcp.NewToolResultError("parent note not found")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("note not found")
	case errors.Is(err, apperr.ErrCircularReference):
		return mcp.NewToolResultError("rejected: mentions would form a cycle")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("rejected: note changed since if_match checksum was read")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// intArg extracts a numeric argument, falling back to def when it is
// missing or outside 1..100.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok || v < 1 || v > 100 {
		return def
	}
	return int(v)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.CreateNote(ctx, content, req.GetString("parent_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.UpdateNote(ctx, id, content, req.GetString("if_match", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(n), nil
}

func (s *Server) getThread(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	th, err := s.svc.GetThread(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(th), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteNote(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("type", noteservice.SearchContent)
	if kind != noteservice.SearchContent && kind != noteservice.SearchMention {
		return mcp.NewToolResultError("type must be content or mention"), nil
	}
	results, err := s.svc.Search(ctx, query, kind, intArg(req, "limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getMentions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no mentions found"), nil
	}
	return jsonResult(bl), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
