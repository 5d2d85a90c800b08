package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger means
// slog.Default().
func NewHandlers(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{db: db, cfg: cfg, logger: logger}
}

func (h *Handlers) ctx(ctx context.Context, tool string) context.Context {
	return ops.WithLogger(ctx, h.logger.With("tool", tool))
}

// Request types for each tool

// CopyRequest represents the arguments for copy.
type CopyRequest struct {
	Records      []ops.RecordInput `json:"records,omitempty"`
	Raw          []byte            `json:"raw,omitempty"` // base64 in JSON
	Tag          string            `json:"tag,omitempty"`
	OriginBundle string            `json:"origin_bundle,omitempty"`
	ShareScope   string            `json:"share_scope,omitempty"`
	LocalOnly    bool              `json:"local_only,omitempty"`
	Split        *bool             `json:"split,omitempty"`
	Scanner      string            `json:"scanner,omitempty"`
	ResolveFiles bool              `json:"resolve_files,omitempty"`
}

// PasteRequest represents the arguments for paste.
type PasteRequest struct {
	ID             string            `json:"id,omitempty"`
	Merge          string            `json:"merge,omitempty"`
	URIMap         map[string]string `json:"uri_map,omitempty"`
	IncludeRaw     bool              `json:"include_raw,omitempty"`
	IncludeDeleted bool              `json:"include_deleted,omitempty"`
}

// LatestRequest represents the arguments for latest.
type LatestRequest struct {
	IncludeText    *bool `json:"include_text,omitempty"`
	IncludeDeleted bool  `json:"include_deleted,omitempty"`
}

// ListRequest represents the arguments for list.
type ListRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeDeleted bool `json:"include_deleted,omitempty"`
}

// DeleteRequest represents the arguments for delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// PurgeRequest represents the arguments for purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// SplitRequest represents the arguments for split.
type SplitRequest struct {
	ID           string `json:"id,omitempty"`
	Scanner      string `json:"scanner,omitempty"`
	ResolveFiles bool   `json:"resolve_files,omitempty"`
}

// MergeRequest represents the arguments for merge.
type MergeRequest struct {
	ID     string            `json:"id,omitempty"`
	Mode   string            `json:"mode,omitempty"`
	URIMap map[string]string `json:"uri_map,omitempty"`
}

// InspectRequest represents the arguments for inspect.
type InspectRequest struct {
	ID             string `json:"id,omitempty"`
	Raw            []byte `json:"raw,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	Path           string `json:"path,omitempty"`
	Label          string `json:"label,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ImportRequest represents the arguments for import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Handler implementations

// HandleCopy handles the copy tool call.
func (h *Handlers) HandleCopy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CopyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Copy(h.ctx(ctx, "pasteboard_copy"), h.db, h.cfg, ops.CopyInput{
		Records:      input.Records,
		Raw:          input.Raw,
		Tag:          input.Tag,
		OriginBundle: input.OriginBundle,
		ShareScope:   input.ShareScope,
		LocalOnly:    input.LocalOnly,
		Split:        input.Split,
		Scanner:      input.Scanner,
		ResolveFiles: input.ResolveFiles,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePaste handles the paste tool call.
func (h *Handlers) HandlePaste(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PasteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Paste(h.ctx(ctx, "pasteboard_paste"), h.db, h.cfg, ops.PasteInput{
		ID:             input.ID,
		Merge:          input.Merge,
		URIMap:         input.URIMap,
		IncludeRaw:     input.IncludeRaw,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLatest handles the latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Latest(h.ctx(ctx, "pasteboard_latest"), h.db, ops.LatestInput{
		IncludeText:    input.IncludeText,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(h.ctx(ctx, "pasteboard_list"), h.db, ops.ListInput{
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(h.ctx(ctx, "pasteboard_delete"), h.db, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePurge handles the purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(h.ctx(ctx, "pasteboard_purge"), h.db, ops.PurgeInput{
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSplit handles the split tool call.
func (h *Handlers) HandleSplit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SplitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Split(h.ctx(ctx, "pasteboard_split"), h.db, h.cfg, ops.SplitInput{
		ID:           input.ID,
		Scanner:      input.Scanner,
		ResolveFiles: input.ResolveFiles,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleMerge handles the merge tool call.
func (h *Handlers) HandleMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MergeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Merge(h.ctx(ctx, "pasteboard_merge"), h.db, h.cfg, ops.MergeInput{
		ID:     input.ID,
		Mode:   input.Mode,
		URIMap: input.URIMap,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInspect handles the inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(h.ctx(ctx, "pasteboard_inspect"), h.db, h.cfg, ops.InspectInput{
		ID:             input.ID,
		Raw:            input.Raw,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(h.ctx(ctx, "pasteboard_export"), h.db, h.cfg, ops.ExportInput{
		Path:           input.Path,
		Label:          input.Label,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(h.ctx(ctx, "pasteboard_import"), h.db, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to avoid leaking paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var pbErr *errors.PasteboardError
	if errors.As(err, &pbErr) {
		message := pbErr.Message
		// Keep context added by wrapping, e.g. "record 2: ..."
		if err != error(pbErr) && pbErr.Code != errors.ErrInternal {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    pbErr.Code,
			"message": message,
			"status":  pbErr.Status,
		}
		if pbErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if pbErr.Details != nil {
			errorObj["details"] = pbErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
