// Package tlv implements the tag/length/value encoding used for pasteboard
// payloads.
//
// Every field is a 6-byte head (little-endian uint16 tag, uint32 length)
// followed by exactly length bytes of value. Tags are scoped to the
// container that holds them, so the same number can mean different things
// in a payload, a record, and a property set.
//
// Decoders dispatch on tag and skip anything they do not recognize using
// only the head's length. That is the whole compatibility story: new
// fields can be added by one side without the other side failing.
//
// Encoding is sized up front. Every value reports its encoded size
// (EncodedSize for objects, the Count* helpers for primitives) so that
// Marshal allocates the output buffer exactly once:
//
//	data, err := tlv.Marshal(payload)
//	err = tlv.Unmarshal(data, &payload)
package tlv
