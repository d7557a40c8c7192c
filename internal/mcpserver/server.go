// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes journal tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/settings"
)

// Server wraps the MCP server with dagaz journal tools.
type Server struct {
	mcp      *server.MCPServer
	entries  *journal.Repository
	settings *settings.Repository
}

// New creates a new MCP server with all journal tools registered.
func New(entries *journal.Repository, sr *settings.Repository) *Server {
	s := &Server{entries: entries, settings: sr}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List journal entries, newest date first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries to return (0 for all)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read the journal entry for a calendar date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date in YYYY-MM-DD form")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Create the journal entry for a date. Each date holds at most one entry. "+
			"Mood must be one of happy/good/normal/sad/angry; weather one of sunny/cloudy/rainy/snowy."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date in YYYY-MM-DD form")),
		mcp.WithString("mood", mcp.Required(), mcp.Description("Mood for the day")),
		mcp.WithString("weather", mcp.Required(), mcp.Description("Weather for the day")),
		mcp.WithString("memo", mcp.Description("Free-text memo (may be empty)")),
		mcp.WithString("good_thing", mcp.Description("One good thing that happened")),
		mcp.WithString("bad_thing", mcp.Description("One bad thing that happened")),
	), s.createEntry)

	s.mcp.AddTool(mcp.NewTool("entries_between",
		mcp.WithDescription("List journal entries within an inclusive date range, newest first."),
		mcp.WithString("start", mcp.Required(), mcp.Description("Range start in YYYY-MM-DD form")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Range end in YYYY-MM-DD form")),
	), s.entriesBetween)

	s.mcp.AddTool(mcp.NewTool("journal_stats",
		mcp.WithDescription("Report the total number of journal entries."),
	), s.journalStats)

	s.mcp.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Read the journal's current settings (theme, notifications, app lock)."),
	), s.getSettings)

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

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if v, err := req.RequireInt("limit"); err == nil {
		limit = v
	}
	entries, err := s.entries.FindAll(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.entries.FindByDate(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if entry == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no entry for %s", date)), nil
	}
	out, _ := json.MarshalIndent(entry, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mood, err := req.RequireString("mood")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	weather, err := req.RequireString("weather")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := journal.CreateInput{Date: date, Mood: mood, Weather: weather}
	if v, err := req.RequireString("memo"); err == nil {
		in.Memo = v
	}
	if v, err := req.RequireString("good_thing"); err == nil {
		in.GoodThing = v
	}
	if v, err := req.RequireString("bad_thing"); err == nil {
		in.BadThing = v
	}

	entry, err := s.entries.Create(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entry, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) entriesBetween(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.entries.FindByDateRange(ctx, start, end)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) journalStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.entries.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"entries": %d}`, n)), nil
}

func (s *Server) getSettings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cfg, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
