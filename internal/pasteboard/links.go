package pasteboard

// DanglingLinks returns the satellites whose From names no record in p.
// Payloads decoded from another process may carry such links; merging
// leaves them in place.
func DanglingLinks(p *Payload) []*Record {
	ids := make(map[uint32]bool, len(p.records))
	for _, r := range p.records {
		ids[r.ID] = true
	}
	var dangling []*Record
	for _, r := range p.records {
		if r.IsSatellite() && !ids[r.From] {
			dangling = append(dangling, r)
		}
	}
	return dangling
}

// Satellites groups satellite records by the id of their root.
func Satellites(p *Payload) map[uint32][]*Record {
	groups := make(map[uint32][]*Record)
	for _, r := range p.records {
		if r.IsSatellite() {
			groups[r.From] = append(groups[r.From], r)
		}
	}
	return groups
}
