package presence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

// maxFrameSize bounds a single payload read from the socket.
const maxFrameSize = 1 << 20

// WriteFrame writes a little-endian opcode and length header followed by the
// JSON encoding of payload.
func WriteFrame(w io.Writer, op Opcode, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding frame: %v", err)
	}
	return writeRaw(w, op, body)
}

func writeRaw(w io.Writer, op Opcode, body []byte) error {
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("error writing frame: %w", err)
	}
	return nil
}

func ReadFrame(r io.Reader) (Opcode, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("error reading frame header: %w", err)
	}
	op := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("error reading frame body: %w", err)
	}
	return op, body, nil
}
