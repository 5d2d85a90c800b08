//go:build linux || darwin

package pasteboard

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/hpungsan/pasteboard/internal/errors"
)

// maxIndexList bounds the index list a peer may announce.
const maxIndexList = 1 << 16

// UnixChannel passes descriptors over a connected Unix stream socket using
// SCM_RIGHTS. The index list is sent as a uint32 count followed by the
// indices, little-endian.
type UnixChannel struct {
	fd int
}

// NewUnixChannel wraps a connected AF_UNIX stream socket. The channel owns
// fd and closes it on Close.
func NewUnixChannel(fd int) *UnixChannel {
	return &UnixChannel{fd: fd}
}

// UnixChannelPair returns two connected channels.
func UnixChannelPair() (*UnixChannel, *UnixChannel, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return NewUnixChannel(fds[0]), NewUnixChannel(fds[1]), nil
}

func (c *UnixChannel) Close() error {
	return unix.Close(c.fd)
}

func (c *UnixChannel) WriteIndexList(indices []uint32) error {
	buf := make([]byte, 0, 4+4*len(indices))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(indices)))
	for _, idx := range indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	return c.writeFull(buf)
}

func (c *UnixChannel) ReadIndexList() ([]uint32, error) {
	var head [4]byte
	if err := c.readFull(head[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(head[:])
	if n > maxIndexList {
		return nil, errors.NewMalformedInput(fmt.Sprintf("index list of %d entries exceeds %d", n, maxIndexList))
	}
	body := make([]byte, 4*int(n))
	if err := c.readFull(body); err != nil {
		return nil, err
	}
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = binary.LittleEndian.Uint32(body[4*i:])
	}
	return indices, nil
}

func (c *UnixChannel) WriteFD(fd int) error {
	if fd < 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid file descriptor %d", fd))
	}
	return unix.Sendmsg(c.fd, []byte{0}, unix.UnixRights(fd), nil, 0)
}

// ReadFD receives one descriptor. The caller owns it.
func (c *UnixChannel) ReadFD() (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, 0)
	if err != nil {
		return -1, fmt.Errorf("recvmsg: %w", err)
	}
	if n == 0 {
		return -1, io.ErrUnexpectedEOF
	}
	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	if len(fds) == 0 {
		return -1, errors.NewMalformedInput("message carried no descriptor")
	}
	for _, extra := range fds[1:] {
		_ = unix.Close(extra)
	}
	return fds[0], nil
}

func (c *UnixChannel) writeFull(b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(c.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		b = b[n:]
	}
	return nil
}

func (c *UnixChannel) readFull(b []byte) error {
	for len(b) > 0 {
		n, err := unix.Read(c.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		b = b[n:]
	}
	return nil
}
