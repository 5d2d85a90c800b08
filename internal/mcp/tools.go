package mcp

import "github.com/mark3labs/mcp-go/mcp"

var recordItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []string{"html", "plain_text", "uri", "want", "custom"},
		},
		"mime_type":   map[string]any{"type": "string"},
		"text":        map[string]any{"type": "string"},
		"custom_data": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
	},
	"required": []string{"kind"},
}

var copyToolDef = mcp.NewTool("pasteboard_copy",
	mcp.WithDescription("Copy records onto the pasteboard. The first record is the primary one. HTML referencing local images is split into satellite records unless split is false. A copy identical to the newest entry is not stored twice."),
	mcp.WithArray("records", mcp.Description("Records to copy, primary first"), mcp.Items(recordItemSchema)),
	mcp.WithString("raw", mcp.Description("Base64 of an encoded payload; exclusive with records")),
	mcp.WithString("tag", mcp.Description("Payload tag")),
	mcp.WithString("origin_bundle", mcp.Description("Application that produced the payload")),
	mcp.WithString("share_scope", mcp.Description("How far the payload may travel"), mcp.Enum("in_app", "local_device", "cross_device")),
	mcp.WithBoolean("local_only", mcp.Description("Keep the payload on this device")),
	mcp.WithBoolean("split", mcp.Description("Split local images out of HTML (default from config)")),
	mcp.WithString("scanner", mcp.Description("Image source scanner"), mcp.Enum("regex", "tokenizer")),
	mcp.WithBoolean("resolve_files", mcp.Description("Only split out images that exist as regular files")),
)

var pasteToolDef = mcp.NewTool("pasteboard_paste",
	mcp.WithDescription("Read an entry (default: newest). Split HTML is merged back unless merge is none."),
	mcp.WithString("id", mcp.Description("Entry ULID")),
	mcp.WithString("merge", mcp.Description("Merge strategy"), mcp.Enum("auto", "none", "extra_uris", "rebuild")),
	mcp.WithObject("uri_map", mcp.Description("Satellite URI rewrites applied before merging, old URI to new URI")),
	mcp.WithBoolean("include_raw", mcp.Description("Include the encoded payload as base64")),
	mcp.WithBoolean("include_deleted", mcp.Description("Allow reading soft-deleted entries")),
)

var latestToolDef = mcp.NewTool("pasteboard_latest",
	mcp.WithDescription("Summarize the newest history entry."),
	mcp.WithBoolean("include_text", mcp.Description("Include the primary record's text")),
	mcp.WithBoolean("include_deleted", mcp.Description("Consider soft-deleted entries")),
)

var listToolDef = mcp.NewTool("pasteboard_list",
	mcp.WithDescription("List history entries, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max entries (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Entries to skip")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted entries")),
)

var deleteToolDef = mcp.NewTool("pasteboard_delete",
	mcp.WithDescription("Soft-delete a history entry."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ULID")),
)

var purgeToolDef = mcp.NewTool("pasteboard_purge",
	mcp.WithDescription("Permanently remove soft-deleted entries."),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge entries deleted more than N days ago")),
)

var splitToolDef = mcp.NewTool("pasteboard_split",
	mcp.WithDescription("Split local images out of an entry's HTML and store the result as a new entry."),
	mcp.WithString("id", mcp.Description("Entry ULID (default: newest)")),
	mcp.WithString("scanner", mcp.Description("Image source scanner"), mcp.Enum("regex", "tokenizer")),
	mcp.WithBoolean("resolve_files", mcp.Description("Only split out images that exist as regular files")),
)

var mergeToolDef = mcp.NewTool("pasteboard_merge",
	mcp.WithDescription("Splice an entry's satellites back into its HTML and store the result as a new entry."),
	mcp.WithString("id", mcp.Description("Entry ULID (default: newest)")),
	mcp.WithString("mode", mcp.Description("Merge strategy"), mcp.Enum("extra_uris", "rebuild")),
	mcp.WithObject("uri_map", mcp.Description("Satellite URI rewrites applied before splicing, old URI to new URI")),
)

var inspectToolDef = mcp.NewTool("pasteboard_inspect",
	mcp.WithDescription("Dump the TLV structure of an entry or of raw payload bytes and check its split links."),
	mcp.WithString("id", mcp.Description("Entry ULID (default: newest)")),
	mcp.WithString("raw", mcp.Description("Base64 of an encoded payload; takes precedence over id")),
	mcp.WithBoolean("include_deleted", mcp.Description("Allow inspecting soft-deleted entries")),
)

var exportToolDef = mcp.NewTool("pasteboard_export",
	mcp.WithDescription("Export the history to a .pbx file."),
	mcp.WithString("path", mcp.Description("Destination (default: ~/.pasteboard/exports/<label>-<timestamp>.pbx)")),
	mcp.WithString("label", mcp.Description("File name prefix for the default path")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted entries")),
)

var importToolDef = mcp.NewTool("pasteboard_import",
	mcp.WithDescription("Import entries from a .pbx file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .pbx file")),
	mcp.WithString("mode", mcp.Description("Collision handling"), mcp.Enum("error", "skip", "rename")),
)
