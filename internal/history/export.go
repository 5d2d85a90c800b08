package history

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/pasteboard"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// encMode uses Core Deterministic Encoding so the same entries always
// export to the same bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("history: CBOR encoder initialization failed: " + err.Error())
	}
}

// ExportHeader is the first item of an export file.
type ExportHeader struct {
	PasteboardExport bool   `cbor:"pasteboard_export"`
	SchemaVersion    string `cbor:"schema_version"`
	ExportedAt       int64  `cbor:"exported_at"`
}

// ExportRecord is one entry in an export file. Only the encoded payload and
// its identity travel; everything else is recomputed on import.
type ExportRecord struct {
	ID        string `cbor:"id"`
	Checksum  string `cbor:"checksum"`
	Payload   []byte `cbor:"payload"`
	CreatedAt int64  `cbor:"created_at"`
	DeletedAt *int64 `cbor:"deleted_at,omitempty"`
}

// ToExportRecord converts an Entry to an ExportRecord.
func ToExportRecord(e *Entry) (*ExportRecord, error) {
	raw, err := e.Raw()
	if err != nil {
		return nil, err
	}
	return &ExportRecord{
		ID:        e.ID,
		Checksum:  e.Checksum,
		Payload:   raw,
		CreatedAt: e.CreatedAt,
		DeletedAt: e.DeletedAt,
	}, nil
}

// ToEntry decodes the record's payload and rebuilds the entry around it.
func (r *ExportRecord) ToEntry(minCompress int) (*Entry, error) {
	if r.ID == "" {
		return nil, errors.NewInvalidRequest("missing id field")
	}
	if r.Checksum != "" && Checksum(r.Payload) != r.Checksum {
		return nil, errors.NewMalformedInput(fmt.Sprintf("checksum mismatch for %s", r.ID))
	}
	p, err := pasteboard.Unmarshal(r.Payload)
	if err != nil {
		return nil, err
	}
	e, err := NewEntry(r.ID, p, r.Payload, minCompress, r.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.DeletedAt = r.DeletedAt
	return e, nil
}

// ExportWriter writes an export file as a CBOR sequence: one header, then
// one item per record.
type ExportWriter struct {
	enc *cbor.Encoder
}

// NewExportWriter writes the header to w.
func NewExportWriter(w io.Writer, exportedAt int64) (*ExportWriter, error) {
	enc := encMode.NewEncoder(w)
	header := ExportHeader{
		PasteboardExport: true,
		SchemaVersion:    ExportSchemaVersion,
		ExportedAt:       exportedAt,
	}
	if err := enc.Encode(header); err != nil {
		return nil, err
	}
	return &ExportWriter{enc: enc}, nil
}

// Write appends one record.
func (w *ExportWriter) Write(r *ExportRecord) error {
	return w.enc.Encode(r)
}

// ExportReader reads an export file written by ExportWriter.
type ExportReader struct {
	dec    *cbor.Decoder
	Header ExportHeader
}

// NewExportReader reads and checks the header.
func NewExportReader(r io.Reader) (*ExportReader, error) {
	dec := cbor.NewDecoder(r)
	var header ExportHeader
	if err := dec.Decode(&header); err != nil {
		return nil, errors.WrapMalformedInput("read export header", err)
	}
	if !header.PasteboardExport {
		return nil, errors.NewMalformedInput("not a pasteboard export")
	}
	return &ExportReader{dec: dec, Header: header}, nil
}

// Next returns the next record, or io.EOF at the end of the file.
func (r *ExportReader) Next() (*ExportRecord, error) {
	var rec ExportRecord
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.WrapMalformedInput("read export record", err)
	}
	return &rec, nil
}
