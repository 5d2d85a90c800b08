package htmlsplit

import (
	"fmt"
	"sort"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// splice replaces the placeholder Key at Offset with URI.
type splice struct {
	Offset  uint32
	Key     string
	URI     string
	source  *pasteboard.Record
	applied bool
}

// RejectedSplice describes a splice that was not applied.
type RejectedSplice struct {
	RecordID uint32
	Key      string
	Offset   uint32
	Err      error
}

// MergeReport summarizes a merge.
type MergeReport struct {
	Applied  int
	Rejected []RejectedSplice

	// Removed counts satellite records taken out of the payload.
	Removed int
}

func (r *MergeReport) add(o MergeReport) {
	r.Applied += o.Applied
	r.Rejected = append(r.Rejected, o.Rejected...)
	r.Removed += o.Removed
}

// Merger reverses a split.
type Merger struct {
	opts options
}

func NewMerger(opts ...Option) *Merger {
	return &Merger{opts: newOptions(opts)}
}

// collectSplices reads the offset lists a satellite carries. An unreadable
// list is reported as rejected.
func collectSplices(rec *pasteboard.Record) ([]splice, []RejectedSplice) {
	uri, ok := rec.Content.URI()
	if !ok || rec.CustomData == nil {
		return nil, nil
	}
	var (
		splices  []splice
		rejected []RejectedSplice
	)
	for key, packed := range rec.CustomData {
		if key == "" {
			rejected = append(rejected, RejectedSplice{
				RecordID: rec.ID, Err: errors.NewMalformedInput("offset list has an empty placeholder"),
			})
			continue
		}
		offsets, err := ParseOffsetList(packed)
		if err != nil {
			rejected = append(rejected, RejectedSplice{RecordID: rec.ID, Key: key, Err: err})
			continue
		}
		for _, off := range offsets {
			splices = append(splices, splice{Offset: off, Key: key, URI: uri, source: rec})
		}
	}
	return splices, rejected
}

// spliceOffsets applies splices from the highest offset down, so a
// replacement only ever shifts text to its right, which has already been
// processed. A splice that falls outside the text, overlaps one already
// applied, or whose placeholder is not at its offset is rejected on its own.
// splices is sorted in place and each applied entry is marked.
func spliceOffsets(html string, splices []splice) (string, MergeReport) {
	sort.SliceStable(splices, func(i, j int) bool {
		if splices[i].Offset != splices[j].Offset {
			return splices[i].Offset > splices[j].Offset
		}
		return splices[i].Key < splices[j].Key
	})

	var report MergeReport
	// Text before limit has not been touched yet.
	limit := len(html)
	for i := range splices {
		sp := &splices[i]
		off := int(sp.Offset)
		end := off + len(sp.Key)
		if end > limit {
			report.Rejected = append(report.Rejected, RejectedSplice{
				RecordID: sp.source.ID, Key: sp.Key, Offset: sp.Offset,
				Err: errors.NewSpliceOutOfBounds(off, len(sp.Key), len(html)),
			})
			continue
		}
		if html[off:end] != sp.Key {
			err := errors.NewSpliceOutOfBounds(off, len(sp.Key), len(html))
			err.Message = fmt.Sprintf("placeholder %q not found at offset %d", sp.Key, off)
			report.Rejected = append(report.Rejected, RejectedSplice{
				RecordID: sp.source.ID, Key: sp.Key, Offset: sp.Offset, Err: err,
			})
			continue
		}
		html = html[:off] + sp.URI + html[end:]
		limit = off
		sp.applied = true
		report.Applied++
	}
	return html, report
}

// RebuildHTML collapses the payload into a single HTML record with every
// satellite URI spliced back into place. A payload without an HTML record,
// or without satellites, is left unchanged.
func (m *Merger) RebuildHTML(p *pasteboard.Payload) (MergeReport, error) {
	root, _, ok := p.PrimaryHTML()
	if !ok {
		return MergeReport{}, nil
	}

	var (
		splices []splice
		report  MergeReport
	)
	for _, rec := range p.Records() {
		if rec == root {
			continue
		}
		sp, rejected := collectSplices(rec)
		splices = append(splices, sp...)
		report.Rejected = append(report.Rejected, rejected...)
	}
	if len(splices) == 0 {
		m.logRejected(report)
		return report, nil
	}

	html, _ := root.Content.HTML()
	rebuilt, spliced := spliceOffsets(html, splices)
	report.add(spliced)

	rec, err := pasteboard.NewHTMLRecord(rebuilt)
	if err != nil {
		return MergeReport{}, err
	}
	report.Removed = p.RecordCount() - 1
	p.RemoveRecords(func(*pasteboard.Record) bool { return true })
	if err := p.AddRecord(rec); err != nil {
		return MergeReport{}, err
	}
	if p.Tag() == m.opts.tag {
		p.SetTag("")
	}
	m.logRejected(report)
	return report, nil
}

// MergeExtraURIs splices satellites back into their own root within the
// payload. Each root's text is replaced in place; satellites whose splices
// all applied are removed. A satellite with a rejected splice stays linked to
// its root, which stays a split root, and keeps only its unapplied offsets,
// moved to match the rewritten text. Satellites whose root is missing, and
// unrelated records, are left untouched.
func (m *Merger) MergeExtraURIs(p *pasteboard.Payload) (MergeReport, error) {
	groups := pasteboard.Satellites(p)
	if len(groups) == 0 {
		return MergeReport{}, nil
	}
	rootIDs := make([]uint32, 0, len(groups))
	for id := range groups {
		rootIDs = append(rootIDs, id)
	}
	sort.Slice(rootIDs, func(i, j int) bool { return rootIDs[i] < rootIDs[j] })

	var report MergeReport
	consumed := make(map[*pasteboard.Record]bool)
	for _, rootID := range rootIDs {
		root, _, ok := p.RecordByID(rootID)
		if !ok {
			m.opts.logger.Warn("satellites link to a missing record", "root_id", rootID, "satellites", len(groups[rootID]))
			continue
		}
		html, ok := root.Content.HTML()
		if !ok {
			m.opts.logger.Warn("satellites link to a non-html record", "root_id", rootID, "kind", root.Content.Kind())
			continue
		}

		var splices []splice
		failed := make(map[*pasteboard.Record]bool)
		for _, sat := range groups[rootID] {
			sp, rejected := collectSplices(sat)
			splices = append(splices, sp...)
			report.Rejected = append(report.Rejected, rejected...)
			if len(rejected) > 0 {
				failed[sat] = true
			}
		}
		merged, spliced := spliceOffsets(html, splices)
		report.add(spliced)
		for _, sp := range splices {
			if !sp.applied {
				failed[sp.source] = true
			}
		}
		root.Content = pasteboard.HTMLContent(merged)

		remaining := 0
		for _, sat := range groups[rootID] {
			if !failed[sat] && sat.MimeType == pasteboard.MimeTypeURI && sat.From > 0 {
				consumed[sat] = true
				continue
			}
			remaining++
			if failed[sat] {
				retainUnapplied(sat, splices)
			}
		}
		if remaining == 0 {
			root.From = 0
		}
	}

	report.Removed = p.RemoveRecords(func(r *pasteboard.Record) bool { return consumed[r] })
	if p.Tag() == m.opts.tag && len(pasteboard.Satellites(p)) == 0 {
		p.SetTag("")
	}
	m.logRejected(report)
	return report, nil
}

// retainUnapplied rewrites sat's offset lists after a partial merge: applied
// offsets are dropped and the rest are moved by the length change of every
// applied splice that ends at or before them. Lists that failed to parse are
// left as they are.
func retainUnapplied(sat *pasteboard.Record, splices []splice) {
	keep := make(map[string]OffsetList)
	touched := make(map[string]bool)
	for _, sp := range splices {
		if sp.source != sat {
			continue
		}
		touched[sp.Key] = true
		if sp.applied {
			continue
		}
		off := int64(sp.Offset)
		for _, done := range splices {
			if done.applied && int64(done.Offset)+int64(len(done.Key)) <= int64(sp.Offset) {
				off += int64(len(done.URI)) - int64(len(done.Key))
			}
		}
		keep[sp.Key] = append(keep[sp.Key], uint32(off))
	}
	for key := range touched {
		if len(keep[key]) == 0 {
			delete(sat.CustomData, key)
			continue
		}
		sat.CustomData[key] = keep[key].Pack()
	}
}

func (m *Merger) logRejected(report MergeReport) {
	for _, r := range report.Rejected {
		m.opts.logger.Warn("splice rejected", "record_id", r.RecordID, "offset", r.Offset, "error", r.Err)
	}
}
