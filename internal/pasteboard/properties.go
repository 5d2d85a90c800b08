package pasteboard

import (
	"fmt"

	"github.com/hpungsan/pasteboard/internal/errors"
	"github.com/hpungsan/pasteboard/internal/tlv"
)

// ShareScope controls how far a payload may travel.
type ShareScope int32

const (
	ShareInApp ShareScope = iota
	ShareLocalDevice
	ShareCrossDevice
)

func (s ShareScope) String() string {
	switch s {
	case ShareInApp:
		return "in_app"
	case ShareLocalDevice:
		return "local_device"
	case ShareCrossDevice:
		return "cross_device"
	default:
		return fmt.Sprintf("share_scope(%d)", int32(s))
	}
}

// ParseShareScope accepts the names returned by ShareScope.String.
func ParseShareScope(s string) (ShareScope, error) {
	switch s {
	case "in_app":
		return ShareInApp, nil
	case "", "local_device":
		return ShareLocalDevice, nil
	case "cross_device":
		return ShareCrossDevice, nil
	}
	return 0, errors.NewInvalidRequest(fmt.Sprintf("unknown share scope %q", s))
}

func (s ShareScope) valid() bool {
	return s >= ShareInApp && s <= ShareCrossDevice
}

// Properties describe a payload as a whole.
type Properties struct {
	// Additions carries host-defined extra parameters.
	Additions map[string][]byte

	// Tag is free-form. A split payload carries the splitter's sentinel.
	Tag string

	LocalOnly  bool
	Timestamp  int64 // unix milliseconds when the payload was created
	ShareScope ShareScope
	OwnerToken uint32
	IsRemote   bool

	// OriginBundle names the application that produced the payload.
	OriginBundle string

	SetTime string

	// contentTypes mirrors the payload's record MIME types. Only the payload
	// updates it.
	contentTypes []string
}

// ContentTypes returns the cached MIME type list.
func (p *Properties) ContentTypes() []string {
	return append([]string(nil), p.contentTypes...)
}

const (
	propTagAdditions uint16 = iota + 1
	propTagMimeTypes
	propTagTag
	propTagLocalOnly
	propTagTimestamp
	propTagShareScope
	propTagOwnerToken
	propTagIsRemote
	propTagOriginBundle
	propTagSetTime
)

func (p *Properties) EncodedSize() int {
	return tlv.CountOptionalBytesMap(p.Additions) +
		tlv.CountStrings(p.contentTypes) +
		tlv.CountString(p.Tag) +
		tlv.CountBool() +
		tlv.CountInt64() +
		tlv.CountInt32() +
		tlv.CountUint32() +
		tlv.CountBool() +
		tlv.CountString(p.OriginBundle) +
		tlv.CountString(p.SetTime)
}

func (p *Properties) EncodeTLV(w *tlv.Writer) error {
	if err := w.WriteOptionalBytesMap(propTagAdditions, p.Additions); err != nil {
		return err
	}
	if err := w.WriteStrings(propTagMimeTypes, p.contentTypes); err != nil {
		return err
	}
	if err := w.WriteString(propTagTag, p.Tag); err != nil {
		return err
	}
	if err := w.WriteBool(propTagLocalOnly, p.LocalOnly); err != nil {
		return err
	}
	if err := w.WriteInt64(propTagTimestamp, p.Timestamp); err != nil {
		return err
	}
	if err := w.WriteInt32(propTagShareScope, int32(p.ShareScope)); err != nil {
		return err
	}
	if err := w.WriteUint32(propTagOwnerToken, p.OwnerToken); err != nil {
		return err
	}
	if err := w.WriteBool(propTagIsRemote, p.IsRemote); err != nil {
		return err
	}
	if err := w.WriteString(propTagOriginBundle, p.OriginBundle); err != nil {
		return err
	}
	return w.WriteString(propTagSetTime, p.SetTime)
}

func (p *Properties) DecodeTLV(r *tlv.Reader) error {
	for r.Remaining() > 0 {
		h, err := r.ReadHead()
		if err != nil {
			return err
		}
		switch h.Tag {
		case propTagAdditions:
			p.Additions, err = r.ReadOptionalBytesMap(h)
		case propTagMimeTypes:
			p.contentTypes, err = r.ReadStrings(h)
		case propTagTag:
			p.Tag, err = r.ReadString(h)
		case propTagLocalOnly:
			p.LocalOnly, err = r.ReadBool(h)
		case propTagTimestamp:
			p.Timestamp, err = r.ReadInt64(h)
		case propTagShareScope:
			var v int32
			if v, err = r.ReadInt32(h); err == nil {
				p.ShareScope = ShareScope(v)
				if !p.ShareScope.valid() {
					err = errors.NewMalformedInput(fmt.Sprintf("share scope %d out of range", v))
				}
			}
		case propTagOwnerToken:
			p.OwnerToken, err = r.ReadUint32(h)
		case propTagIsRemote:
			p.IsRemote, err = r.ReadBool(h)
		case propTagOriginBundle:
			p.OriginBundle, err = r.ReadString(h)
		case propTagSetTime:
			p.SetTime, err = r.ReadString(h)
		default:
			err = r.Skip(h)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Properties) clone() Properties {
	c := *p
	if p.Additions != nil {
		c.Additions = make(map[string][]byte, len(p.Additions))
		for k, v := range p.Additions {
			c.Additions[k] = append([]byte(nil), v...)
		}
	}
	c.contentTypes = append([]string(nil), p.contentTypes...)
	return c
}
