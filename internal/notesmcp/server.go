// Package notesmcp exposes saved notes and the offline field parser as MCP
// tools over stdio.
package notesmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"medscribe/internal/domain"
	"medscribe/internal/heuristics"
	"medscribe/internal/ports"
)

// Handlers serves tool calls against a record store.
type Handlers struct {
	store  ports.RecordStore
	logger zerolog.Logger
}

func NewHandlers(store ports.RecordStore, logger zerolog.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer("medscribe-notes", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List saved clinical notes, newest first, with their id, creation time and patient name."),
	), h.ListNotes)

	s.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Return every field of one saved clinical note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note identifier from list_notes")),
	), h.GetNote)

	s.AddTool(mcp.NewTool("extract_fields",
		mcp.WithDescription("Extract patient name, age, gender, symptoms, history, diagnosis and treatment from free dictation text without calling any remote service."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Dictation text")),
	), h.ExtractFields)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type noteSummary struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"createdAt"`
	PatientName string `json:"patientName"`
	Diagnosis   string `json:"diagnosis,omitempty"`
}

func (h *Handlers) ListNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("list notes failed")
		return mcp.NewToolResultError(fmt.Sprintf("list notes: %v", err)), nil
	}

	summaries := make([]noteSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, noteSummary{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			PatientName: r.PatientName,
			Diagnosis:   r.Diagnosis,
		})
	}
	return jsonResult(summaries)
}

func (h *Handlers) GetNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	record, err := h.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNoteNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no note with id %q", id)), nil
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("get note failed")
		return mcp.NewToolResultError(fmt.Sprintf("get note: %v", err)), nil
	}
	return jsonResult(record)
}

func (h *Handlers) ExtractFields(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(heuristics.Extract(text).Fields)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
