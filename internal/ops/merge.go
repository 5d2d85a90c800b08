package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/pasteboard/internal/config"
	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// Merge modes.
const (
	MergeAuto      = "auto"       // extra_uris when the payload is split, otherwise none
	MergeNone      = "none"       // leave satellites in place
	MergeExtraURIs = "extra_uris" // splice satellites into their roots
	MergeRebuild   = "rebuild"    // collapse into a single HTML record
)

// MergeView reports what a merge did.
type MergeView struct {
	Mode     string         `json:"mode"`
	Applied  int            `json:"applied"`
	Removed  int            `json:"removed"`
	Remapped int            `json:"remapped,omitempty"`
	Rejected []RejectedView `json:"rejected,omitempty"`
}

// RejectedView describes a splice that was not applied.
type RejectedView struct {
	RecordID uint32 `json:"record_id"`
	Key      string `json:"key"`
	Offset   uint32 `json:"offset"`
	Error    string `json:"error"`
}

func parseMergeMode(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "":
		return MergeAuto, nil
	case MergeAuto, MergeNone, MergeExtraURIs, MergeRebuild:
		return m, nil
	default:
		return "", errors.NewInvalidRequest("merge must be one of: auto, none, extra_uris, rebuild")
	}
}

// remapSatellites rewrites satellite URIs found in uriMap. The offset keys
// are left alone, so the new URI is what gets spliced into the HTML.
func remapSatellites(p *pasteboard.Payload, uriMap map[string]string) int {
	if len(uriMap) == 0 {
		return 0
	}
	n := 0
	for _, rec := range p.Records() {
		if !rec.IsSatellite() {
			continue
		}
		uri, ok := rec.Content.URI()
		if !ok {
			continue
		}
		if to, ok := uriMap[uri]; ok && to != "" && to != uri {
			rec.Content = pasteboard.URIContent(to)
			n++
		}
	}
	return n
}

// applyMerge runs the merge named by mode over p. It returns nil for a
// merge that was not attempted.
func applyMerge(ctx context.Context, cfg *config.Config, p *pasteboard.Payload, mode string, uriMap map[string]string) (*MergeView, error) {
	if mode == MergeAuto {
		mode = MergeNone
		if len(pasteboard.Satellites(p)) > 0 {
			mode = MergeExtraURIs
		}
	}
	if mode == MergeNone {
		return nil, nil
	}

	remapped := remapSatellites(p, uriMap)
	m := merger(ctx, cfg)
	var (
		report htmlsplit.MergeReport
		err    error
	)
	if mode == MergeRebuild {
		report, err = m.RebuildHTML(p)
	} else {
		report, err = m.MergeExtraURIs(p)
	}
	if err != nil {
		return nil, err
	}

	view := &MergeView{
		Mode:     mode,
		Applied:  report.Applied,
		Removed:  report.Removed,
		Remapped: remapped,
	}
	for _, r := range report.Rejected {
		rv := RejectedView{RecordID: r.RecordID, Key: r.Key, Offset: r.Offset}
		if r.Err != nil {
			rv.Error = r.Err.Error()
		}
		view.Rejected = append(view.Rejected, rv)
	}
	return view, nil
}

// MergeInput contains parameters for the Merge operation.
type MergeInput struct {
	ID     string            // default: newest entry
	Mode   string            // extra_uris (default) or rebuild
	URIMap map[string]string // satellite URI rewrites applied before splicing
}

// MergeOutput contains the result of the Merge operation.
type MergeOutput struct {
	SourceID string     `json:"source_id"`
	ID       string     `json:"id"`
	Stored   bool       `json:"stored"`
	Merge    *MergeView `json:"merge"`
	Trimmed  int        `json:"trimmed,omitempty"`
}

// Merge splices a stored entry's satellites back into its HTML and stores
// the result as a new entry. An entry the merge leaves unchanged is not
// stored again.
func Merge(ctx context.Context, database *sql.DB, cfg *config.Config, input MergeInput) (*MergeOutput, error) {
	mode := MergeExtraURIs
	if strings.TrimSpace(input.Mode) != "" {
		m, err := parseMergeMode(input.Mode)
		if err != nil {
			return nil, err
		}
		if m != MergeExtraURIs && m != MergeRebuild {
			return nil, errors.NewInvalidRequest("mode must be one of: extra_uris, rebuild")
		}
		mode = m
	}

	src, err := loadEntry(ctx, database, input.ID, false)
	if err != nil {
		return nil, err
	}
	p, err := src.Payload()
	if err != nil {
		return nil, err
	}
	before := p.Clone()

	view, err := applyMerge(ctx, cfg, p, mode, input.URIMap)
	if err != nil {
		return nil, err
	}
	out := &MergeOutput{SourceID: src.ID, ID: src.ID, Merge: view}
	if p.Equal(before) {
		return out, nil
	}

	e, trimmed, err := store(ctx, database, cfg, p)
	if err != nil {
		return nil, err
	}
	loggerFrom(ctx).Info("entry merged", "source_id", src.ID, "id", e.ID, "mode", mode,
		"applied", view.Applied, "rejected", len(view.Rejected))
	out.ID = e.ID
	out.Stored = true
	out.Trimmed = trimmed
	return out, nil
}
