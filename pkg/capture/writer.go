package capture

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Writer appends records to a capture stream.
// It is safe for concurrent use.
type Writer struct {
	w         io.Writer
	encoder   *cbor.Encoder
	sessionID string
	address   string
	now       func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a Writer for the device at address. Every Writer gets
// a fresh session id.
func NewWriter(w io.Writer, address string) *Writer {
	return &Writer{
		w:         w,
		encoder:   NewEncoder(w),
		sessionID: uuid.New().String(),
		address:   address,
		now:       time.Now,
	}
}

// NewFileWriter opens path for appending, creating it with mode 0644.
func NewFileWriter(path, address string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewWriter(f, address), nil
}

// SessionID returns the id stamped on every record.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Record writes one record. Writes after Close are dropped.
func (w *Writer) Record(dir Direction, c gatt.Characteristic, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	return w.encoder.Encode(Record{
		Timestamp:      w.now(),
		SessionID:      w.sessionID,
		Direction:      dir,
		Characteristic: c,
		Address:        w.address,
		Data:           append([]byte(nil), data...),
	})
}

// Close closes the underlying writer if it is an io.Closer.
// It is safe to call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
