package history

import "github.com/hpungsan/pasteboard/internal/pasteboard"

// Entry is one stored clipboard payload.
type Entry struct {
	// ID is a ULID that uniquely identifies this entry
	ID string

	// Checksum is the hex BLAKE3 digest of the raw encoded payload
	Checksum string

	// ContentKey identifies the payload's content regardless of when it was
	// copied. Consecutive copies with the same key are deduplicated.
	ContentKey string

	// Encoding says how Blob is stored (see EncodingRaw, EncodingZstd)
	Encoding string

	// Blob is the stored payload bytes
	Blob []byte

	// RawSize is the length of the encoded payload before compression
	RawSize int

	// StoredSize is len(Blob)
	StoredSize int

	// RecordCount is the number of records in the payload
	RecordCount int

	// ContentTypes mirrors the payload's record MIME types (stored as JSON in DB)
	ContentTypes []string

	// Preview is a short single-line rendering of the payload's primary text
	Preview string

	// Tag is the payload tag (nullable)
	Tag *string

	// OriginBundle names the producing application (nullable)
	OriginBundle *string

	// ShareScope is the payload's share scope name
	ShareScope string

	// Satellites is the number of split satellite records
	Satellites int

	// CreatedAt is the Unix timestamp when the entry was stored
	CreatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// Summary is an Entry without its blob.
// Used for browse operations (list, latest) to reduce data transfer.
type Summary struct {
	ID           string   `json:"id"`
	Checksum     string   `json:"checksum"`
	ContentKey   string   `json:"content_key"`
	Encoding     string   `json:"encoding"`
	RawSize      int      `json:"raw_size"`
	StoredSize   int      `json:"stored_size"`
	RecordCount  int      `json:"record_count"`
	ContentTypes []string `json:"content_types"`
	Preview      string   `json:"preview"`
	Tag          *string  `json:"tag,omitempty"`
	OriginBundle *string  `json:"origin_bundle,omitempty"`
	ShareScope   string   `json:"share_scope"`
	Satellites   int      `json:"satellites"`
	CreatedAt    int64    `json:"created_at"`
	DeletedAt    *int64   `json:"deleted_at,omitempty"`
}

// ToSummary converts an Entry to a Summary by dropping the blob.
func (e *Entry) ToSummary() Summary {
	return Summary{
		ID:           e.ID,
		Checksum:     e.Checksum,
		ContentKey:   e.ContentKey,
		Encoding:     e.Encoding,
		RawSize:      e.RawSize,
		StoredSize:   e.StoredSize,
		RecordCount:  e.RecordCount,
		ContentTypes: e.ContentTypes,
		Preview:      e.Preview,
		Tag:          e.Tag,
		OriginBundle: e.OriginBundle,
		ShareScope:   e.ShareScope,
		Satellites:   e.Satellites,
		CreatedAt:    e.CreatedAt,
		DeletedAt:    e.DeletedAt,
	}
}

// NewEntry describes p for storage. raw must be p's encoding.
func NewEntry(id string, p *pasteboard.Payload, raw []byte, minCompress int, createdAt int64) (*Entry, error) {
	key, err := ContentKey(p)
	if err != nil {
		return nil, err
	}
	encoding, blob := EncodeBlob(raw, minCompress)
	e := &Entry{
		ID:           id,
		Checksum:     Checksum(raw),
		ContentKey:   key,
		Encoding:     encoding,
		Blob:         blob,
		RawSize:      len(raw),
		StoredSize:   len(blob),
		RecordCount:  p.RecordCount(),
		ContentTypes: p.ContentTypes(),
		Preview:      Preview(p),
		ShareScope:   p.ShareScope().String(),
		CreatedAt:    createdAt,
	}
	if tag := p.Tag(); tag != "" {
		e.Tag = &tag
	}
	if origin := p.Properties().OriginBundle; origin != "" {
		e.OriginBundle = &origin
	}
	for _, rec := range p.Records() {
		if rec.IsSatellite() {
			e.Satellites++
		}
	}
	return e, nil
}

// ContentKey hashes p with its timestamps cleared.
func ContentKey(p *pasteboard.Payload) (string, error) {
	c := p.Clone()
	props := c.Properties()
	props.Timestamp = 0
	props.SetTime = ""
	raw, err := c.MarshalBinary()
	if err != nil {
		return "", err
	}
	return Checksum(raw), nil
}

// Payload decodes the stored payload.
func (e *Entry) Payload() (*pasteboard.Payload, error) {
	raw, err := e.Raw()
	if err != nil {
		return nil, err
	}
	return pasteboard.Unmarshal(raw)
}
