package pasteboard

import (
	"fmt"
	"sync"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// DescriptorChannel carries file descriptors beside the encoded payload
// bytes. Both ends must write and read in the same order: the index list
// first, then one descriptor per listed index.
type DescriptorChannel interface {
	WriteIndexList(indices []uint32) error
	WriteFD(fd int) error
	ReadIndexList() ([]uint32, error)
	ReadFD() (int, error)
}

// DescriptorReadError is returned when DecodeWithDescriptors fails after
// taking descriptors off the channel. Received holds the descriptors already
// read, in channel order; the caller owns them.
type DescriptorReadError struct {
	Received []int
	Err      error
}

func (e *DescriptorReadError) Error() string {
	return fmt.Sprintf("decode with %d descriptors received: %v", len(e.Received), e.Err)
}

func (e *DescriptorReadError) Unwrap() error { return e.Err }

// EncodeWithDescriptors encodes p and sends the descriptors of its
// fd-backed URI records over ch, in record order.
func EncodeWithDescriptors(p *Payload, ch DescriptorChannel) ([]byte, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var (
		indices []uint32
		fds     []int
	)
	for i, r := range p.records {
		if fd, ok := r.Content.FD(); ok {
			indices = append(indices, uint32(i))
			fds = append(fds, fd)
		}
	}
	if err := ch.WriteIndexList(indices); err != nil {
		return nil, fmt.Errorf("write index list: %w", err)
	}
	for i, fd := range fds {
		if err := ch.WriteFD(fd); err != nil {
			return nil, fmt.Errorf("write descriptor for record %d: %w", indices[i], err)
		}
	}
	return data, nil
}

// DecodeWithDescriptors decodes data and reattaches the descriptors read
// from ch to the records named by the index list. The index list and every
// descriptor it announces are drained from ch before data is decoded, so a
// rejected payload never leaves entries behind for the next decode.
func DecodeWithDescriptors(data []byte, ch DescriptorChannel) (*Payload, error) {
	indices, err := ch.ReadIndexList()
	if err != nil {
		return nil, fmt.Errorf("read index list: %w", err)
	}
	received := make([]int, 0, len(indices))
	for range indices {
		fd, err := ch.ReadFD()
		if err != nil {
			return nil, &DescriptorReadError{Received: received, Err: err}
		}
		received = append(received, fd)
	}

	p, err := Unmarshal(data)
	if err != nil {
		return nil, &DescriptorReadError{Received: received, Err: err}
	}
	if err := checkDescriptorIndices(p, indices); err != nil {
		return nil, &DescriptorReadError{Received: received, Err: err}
	}
	for i, idx := range indices {
		rec := p.records[idx]
		uri, _ := rec.Content.URI()
		rec.Content = URIContentWithFD(uri, received[i])
	}
	return p, nil
}

func checkDescriptorIndices(p *Payload, indices []uint32) error {
	seen := make(map[uint32]bool, len(indices))
	for _, idx := range indices {
		if int64(idx) >= int64(len(p.records)) {
			return errors.NewMalformedInput(
				fmt.Sprintf("descriptor index %d out of range [0,%d)", idx, len(p.records)))
		}
		if seen[idx] {
			return errors.NewMalformedInput(fmt.Sprintf("descriptor index %d listed twice", idx))
		}
		seen[idx] = true
		if p.records[idx].Content.Kind() != KindURI {
			return errors.NewMalformedInput(
				fmt.Sprintf("descriptor index %d names a %s record", idx, p.records[idx].Content.Kind()))
		}
	}
	return nil
}

// StripDescriptors drops descriptors from every record, keeping the URIs.
// Payloads stored outside the process carry no descriptors.
func StripDescriptors(p *Payload) {
	for _, r := range p.records {
		r.Content = r.Content.withoutFD()
	}
}

// MemoryChannel is an in-process DescriptorChannel. Descriptors are passed
// as plain integers and are not duplicated.
type MemoryChannel struct {
	mu      sync.Mutex
	indices [][]uint32
	fds     []int
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

func (c *MemoryChannel) WriteIndexList(indices []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indices = append(c.indices, append([]uint32{}, indices...))
	return nil
}

func (c *MemoryChannel) WriteFD(fd int) error {
	if fd < 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid file descriptor %d", fd))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fds = append(c.fds, fd)
	return nil
}

func (c *MemoryChannel) ReadIndexList() ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.indices) == 0 {
		return nil, errors.NewMalformedInput("descriptor channel has no index list")
	}
	list := c.indices[0]
	c.indices = c.indices[1:]
	return list, nil
}

func (c *MemoryChannel) ReadFD() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fds) == 0 {
		return -1, errors.NewMalformedInput("descriptor channel has no descriptor")
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, nil
}
