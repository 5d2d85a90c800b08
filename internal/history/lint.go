package history

import (
	"fmt"
	"sort"

	"github.com/hpungsan/pasteboard/internal/htmlsplit"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// LintInput contains parameters for linting a payload.
type LintInput struct {
	Payload  *pasteboard.Payload
	SplitTag string // default: htmlsplit.DefaultSplitTag
}

// LintIssue is one problem found in a payload.
type LintIssue struct {
	RecordID uint32 `json:"record_id"`
	Problem  string `json:"problem"`
}

// LintResult contains the results of linting a payload.
type LintResult struct {
	Valid bool `json:"valid"`

	// DanglingLinks lists satellites whose root is not in the payload
	DanglingLinks []uint32 `json:"dangling_links,omitempty"`

	// StaleSplitTag is set when the payload carries the split tag but has
	// no satellites left
	StaleSplitTag bool `json:"stale_split_tag,omitempty"`

	// MissingSplitTag is set when satellites exist without the split tag
	MissingSplitTag bool `json:"missing_split_tag,omitempty"`

	// Issues lists satellites that a merge would reject
	Issues []LintIssue `json:"issues,omitempty"`
}

// Lint checks that a payload's split structure is consistent: every
// satellite names an HTML root in the payload, and every placeholder
// offset it carries points at its placeholder in that root.
func Lint(input LintInput) *LintResult {
	tag := input.SplitTag
	if tag == "" {
		tag = htmlsplit.DefaultSplitTag
	}
	p := input.Payload
	result := &LintResult{Valid: true}

	for _, rec := range pasteboard.DanglingLinks(p) {
		result.DanglingLinks = append(result.DanglingLinks, rec.ID)
	}

	groups := pasteboard.Satellites(p)
	satellites := 0
	for _, sats := range groups {
		satellites += len(sats)
	}
	result.StaleSplitTag = p.Tag() == tag && satellites == 0
	result.MissingSplitTag = satellites > 0 && p.Tag() != tag

	rootIDs := make([]uint32, 0, len(groups))
	for id := range groups {
		rootIDs = append(rootIDs, id)
	}
	sort.Slice(rootIDs, func(i, j int) bool { return rootIDs[i] < rootIDs[j] })

	for _, rootID := range rootIDs {
		root, _, ok := p.RecordByID(rootID)
		if !ok {
			continue
		}
		html, ok := root.Content.HTML()
		if !ok {
			result.Issues = append(result.Issues, LintIssue{
				RecordID: rootID,
				Problem:  fmt.Sprintf("split root holds %s, not html", root.Content.Kind()),
			})
			continue
		}
		for _, sat := range groups[rootID] {
			result.Issues = append(result.Issues, lintSatellite(sat, html)...)
		}
	}

	result.Valid = len(result.DanglingLinks) == 0 && !result.StaleSplitTag &&
		!result.MissingSplitTag && len(result.Issues) == 0
	return result
}

func lintSatellite(sat *pasteboard.Record, html string) []LintIssue {
	if _, ok := sat.Content.URI(); !ok {
		return []LintIssue{{RecordID: sat.ID, Problem: "satellite is not a uri record"}}
	}
	if len(sat.CustomData) == 0 {
		return []LintIssue{{RecordID: sat.ID, Problem: "satellite carries no offsets"}}
	}

	keys := make([]string, 0, len(sat.CustomData))
	for key := range sat.CustomData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var issues []LintIssue
	for _, key := range keys {
		if key == "" {
			issues = append(issues, LintIssue{RecordID: sat.ID, Problem: "offset list has an empty placeholder"})
			continue
		}
		offsets, err := htmlsplit.ParseOffsetList(sat.CustomData[key])
		if err != nil {
			issues = append(issues, LintIssue{RecordID: sat.ID, Problem: err.Error()})
			continue
		}
		for _, off := range offsets {
			end := int(off) + len(key)
			if end > len(html) || html[off:end] != key {
				issues = append(issues, LintIssue{
					RecordID: sat.ID,
					Problem:  fmt.Sprintf("placeholder %q not found at offset %d", key, off),
				})
			}
		}
	}
	return issues
}
