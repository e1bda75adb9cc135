package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/backkem/meshlight/pkg/gatt"
	"github.com/fxamacker/cbor/v2"
)

// ErrTruncated reports a capture that ends part way through a record.
var ErrTruncated = errors.New("capture: truncated record")

// Filter selects records. Zero fields match everything.
type Filter struct {
	Direction      *Direction
	Characteristic gatt.Characteristic
	SessionID      string
}

func (f *Filter) matches(r Record) bool {
	if f.Direction != nil && r.Direction != *f.Direction {
		return false
	}
	if f.Characteristic != 0 && r.Characteristic != f.Characteristic {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	return true
}

// Reader streams records from a capture.
type Reader struct {
	r       io.Reader
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader reads all records from r.
func NewReader(r io.Reader) *Reader {
	return NewFilteredReader(r, Filter{})
}

// NewFilteredReader reads records from r that match filter.
func NewFilteredReader(r io.Reader, filter Filter) *Reader {
	return &Reader{
		r:       r,
		decoder: NewDecoder(r),
		filter:  filter,
	}
}

// Open opens a capture file.
func Open(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewFilteredReader(f, filter), nil
}

// Next returns the next matching record, or io.EOF at the end. A capture
// cut off inside a record yields ErrTruncated.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return Record{}, fmt.Errorf("%w: %w", ErrTruncated, err)
			}
			return Record{}, fmt.Errorf("capture: decode record: %w", err)
		}
		if r.filter.matches(rec) {
			return rec, nil
		}
	}
}

// ReadAll returns every remaining matching record.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close closes the underlying reader if it is an io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
