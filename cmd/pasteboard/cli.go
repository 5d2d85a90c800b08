package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/mcp"
	"github.com/hpungsan/pasteboard/internal/ops"
	"github.com/hpungsan/pasteboard/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.App {
	if logger == nil {
		logger = slog.Default()
	}
	app := &cli.App{
		Name:    "pasteboard",
		Usage:   "Clipboard payload codec and history",
		Version: Version,
		Commands: []*cli.Command{
			copyCmd(db, cfg, logger),
			pasteCmd(db, cfg, logger),
			latestCmd(db, logger),
			listCmd(db, logger),
			deleteCmd(db, logger),
			purgeCmd(db, logger),
			splitCmd(db, cfg, logger),
			mergeCmd(db, cfg, logger),
			inspectCmd(db, cfg, logger),
			exportCmd(db, cfg, logger),
			importCmd(db, cfg, logger),
			mcpCmd(db, cfg, logger),
			webCmd(db, cfg, logger),
		},
		// URIs may contain commas
		DisableSliceFlagSeparator: true,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// opCtx attaches the command's logger to the context handed to ops.
func opCtx(c *cli.Context, logger *slog.Logger) context.Context {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return ops.WithLogger(ctx, logger.With("command", c.Command.Name))
}

// copyCmd creates the copy command.
func copyCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "copy",
		Usage: "Encode a payload and add it to the history (text from --text or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: ops.KindPlainText, Usage: "Record kind: html|plain_text|uri|want|custom"},
			&cli.StringFlag{Name: "mime-type", Usage: "MIME type (required for custom)"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Record text (default: stdin)"},
			&cli.StringFlag{Name: "raw-file", Usage: "Store an already encoded payload from this file"},
			&cli.StringFlag{Name: "tag", Usage: "Payload tag"},
			&cli.StringFlag{Name: "origin", Usage: "Origin bundle name"},
			&cli.StringFlag{Name: "share-scope", Usage: "in_app|local_device|cross_device"},
			&cli.BoolFlag{Name: "local-only", Usage: "Mark the payload local-only"},
			&cli.BoolFlag{Name: "no-split", Usage: "Do not split local images out of HTML"},
			&cli.StringFlag{Name: "scanner", Usage: "Image scanner: regex|tokenizer"},
			&cli.BoolFlag{Name: "resolve-files", Usage: "Only split images that exist on disk"},
		},
		Action: func(c *cli.Context) error {
			input := ops.CopyInput{
				Tag:          c.String("tag"),
				OriginBundle: c.String("origin"),
				ShareScope:   c.String("share-scope"),
				LocalOnly:    c.Bool("local-only"),
				Scanner:      c.String("scanner"),
				ResolveFiles: c.Bool("resolve-files"),
			}
			if c.Bool("no-split") {
				split := false
				input.Split = &split
			}

			if path := c.String("raw-file"); path != "" {
				raw, err := ops.ReadPayloadFile(path, cfg)
				if err != nil {
					return outputError(err)
				}
				input.Raw = raw
			} else {
				text := c.String("text")
				if !c.IsSet("text") {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("text must be given with --text or piped via stdin"))
					}
					data, err := readStdin(int64(cfg.MaxTextBytes))
					if err != nil {
						return outputError(err)
					}
					text = string(data)
				}
				input.Records = []ops.RecordInput{{
					Kind:     c.String("kind"),
					MimeType: c.String("mime-type"),
					Text:     text,
				}}
			}

			output, err := ops.Copy(opCtx(c, logger), db, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// pasteCmd creates the paste command.
func pasteCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "paste",
		Usage:     "Read a payload from the history, merging split HTML",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "merge", Aliases: []string{"m"}, Value: ops.MergeAuto, Usage: "auto|none|extra_uris|rebuild"},
			&cli.StringSliceFlag{Name: "map", Usage: "Rewrite a satellite URI before merging: old=new (repeatable)"},
			&cli.BoolFlag{Name: "text-only", Usage: "Print only the primary text"},
			&cli.StringFlag{Name: "raw-out", Usage: "Write the stored encoded payload to this file"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted entries"},
		},
		Action: func(c *cli.Context) error {
			uriMap, err := parseURIMap(c.StringSlice("map"))
			if err != nil {
				return outputError(err)
			}
			rawOut := c.String("raw-out")

			output, err := ops.Paste(opCtx(c, logger), db, cfg, ops.PasteInput{
				ID:             c.Args().First(),
				Merge:          c.String("merge"),
				URIMap:         uriMap,
				IncludeRaw:     rawOut != "",
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			if rawOut != "" {
				if err := ops.WritePayloadFile(rawOut, output.Raw, cfg); err != nil {
					return outputError(err)
				}
				output.Raw = nil
			}
			if c.Bool("text-only") {
				_, err := fmt.Fprintln(c.App.Writer, output.Text)
				return err
			}
			return outputJSON(c, output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the newest history entry",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-text", Usage: "Exclude the primary text from output"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted entries"},
		},
		Action: func(c *cli.Context) error {
			input := ops.LatestInput{
				IncludeDeleted: c.Bool("include-deleted"),
			}
			if c.Bool("no-text") {
				includeText := false
				input.IncludeText = &includeText
			}

			output, err := ops.Latest(opCtx(c, logger), db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List history entries, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted entries"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(opCtx(c, logger), db, ops.ListInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a history entry",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(opCtx(c, logger), db, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(opCtx(c, logger), db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// splitCmd creates the split command.
func splitCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split local images out of a stored HTML payload into a new entry",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scanner", Usage: "Image scanner: regex|tokenizer"},
			&cli.BoolFlag{Name: "resolve-files", Usage: "Only split images that exist on disk"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Split(opCtx(c, logger), db, cfg, ops.SplitInput{
				ID:           c.Args().First(),
				Scanner:      c.String("scanner"),
				ResolveFiles: c.Bool("resolve-files"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// mergeCmd creates the merge command.
func mergeCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge a split payload and store the result as a new entry",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: ops.MergeExtraURIs, Usage: "extra_uris|rebuild"},
			&cli.StringSliceFlag{Name: "map", Usage: "Rewrite a satellite URI before merging: old=new (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			uriMap, err := parseURIMap(c.StringSlice("map"))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Merge(opCtx(c, logger), db, cfg, ops.MergeInput{
				ID:     c.Args().First(),
				Mode:   c.String("mode"),
				URIMap: uriMap,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Dump the TLV structure of a stored entry or an encoded file",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Inspect an encoded payload file instead of the history"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted entries"},
		},
		Action: func(c *cli.Context) error {
			input := ops.InspectInput{
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			}
			if path := c.String("file"); path != "" {
				raw, err := ops.ReadPayloadFile(path, cfg)
				if err != nil {
					return outputError(err)
				}
				input.Raw = raw
			}

			output, err := ops.Inspect(opCtx(c, logger), db, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the history to a .pbx file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.pasteboard/exports/<label>-<timestamp>.pbx)"},
			&cli.StringFlag{Name: "label", Usage: "Label for the default file name"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted entries"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(opCtx(c, logger), db, cfg, ops.ExportInput{
				Path:           c.String("path"),
				Label:          c.String("label"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import history entries from a .pbx file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip|rename"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(opCtx(c, logger), db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// mcpCmd creates the mcp command, which serves MCP over stdio.
func mcpCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the history over MCP on stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(db, cfg, Version, logger)
		},
	}
}

// webCmd creates the web command.
func webCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the read-only history viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			webCfg := *cfg
			if c.IsSet("bind") {
				webCfg.WebBind = c.String("bind")
			}
			if c.IsSet("port") {
				webCfg.WebPort = c.Int("port")
			}
			if webCfg.WebPort <= 0 || webCfg.WebPort > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv, err := web.NewServer(db, &webCfg, Version, logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, logger)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var pbErr *errors.PasteboardError
	if errors.As(err, &pbErr) {
		message := pbErr.Message
		if err != error(pbErr) {
			message = err.Error()
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", pbErr.Code, message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads stdin, failing once more than limit bytes arrive.
func readStdin(limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return nil, errors.NewPayloadTooLarge(int(limit), len(data))
	}
	return data, nil
}

// parseURIMap turns old=new pairs into a URI rewrite map.
func parseURIMap(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		if !ok || from == "" || to == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("map entry %q must look like old=new", p))
		}
		m[from] = to
	}
	return m, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
