package crops

import (
	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Barn folds a sequential stream of records into one Store.
//
// The first record fixes the mode. In fields mode a record that misses a known
// field gets Undefined in that column, and a field seen for the first time is
// back-filled with Undefined for every earlier row, so all buffers always have
// exactly Rows() entries. A Barn is owned by a single run and is not safe for
// concurrent use.
type Barn struct {
	mode    Mode
	names   []string
	buffers map[string][]float64
	values  []float64
	rows    int
	closed  bool
}

// NewBarn creates an empty accumulator.
func NewBarn() *Barn {
	return &Barn{
		buffers: make(map[string][]float64),
	}
}

// Mode returns the accumulation mode, ModeUnset before the first record.
func (b *Barn) Mode() Mode { return b.mode }

// Rows returns the number of records accumulated so far.
func (b *Barn) Rows() int { return b.rows }

// Push appends one record. Sequences must be expanded by the caller.
func (b *Barn) Push(r Record) error {
	if b.closed {
		return errors.New(errors.ErrorTypeAccumulation, "push after close")
	}

	mode := ModeOf(r)
	if mode == ModeUnset {
		return errors.Newf(errors.ErrorTypeAccumulation, "cannot accumulate record of type %T", r)
	}
	if b.mode == ModeUnset {
		b.mode = mode
	} else if b.mode != mode {
		return errors.Newf(errors.ErrorTypeAccumulation,
			"record of kind %s received in %s mode", mode, b.mode).
			WithDetail("row", b.rows)
	}

	switch rec := r.(type) {
	case Scalar:
		b.values = append(b.values, float64(rec))
	case Fields:
		b.pushFields(rec)
	}
	b.rows++
	return nil
}

func (b *Barn) pushFields(rec Fields) {
	// New fields get a back-filled buffer before this row is appended
	for _, key := range rec.sortedKeys() {
		if _, exists := b.buffers[key]; exists {
			continue
		}
		buf := make([]float64, b.rows, b.rows+64)
		for i := range buf {
			buf[i] = Undefined
		}
		b.buffers[key] = buf
		b.names = append(b.names, key)
	}

	for _, name := range b.names {
		value, ok := rec[name]
		if !ok {
			value = Undefined
		}
		b.buffers[name] = append(b.buffers[name], value)
	}
}

// Close ends the stream and returns the finalized store. It returns nil when
// no record was ever pushed, because no mode could be established. The raw
// buffers are handed to the store and dropped from the Barn.
func (b *Barn) Close() *Store {
	if b.closed {
		return nil
	}
	b.closed = true

	var store *Store
	switch b.mode {
	case ModeScalar:
		values := make([]float64, len(b.values))
		copy(values, b.values)
		store = FromValues(values)
	case ModeFields:
		store = &Store{
			names:   b.names,
			columns: b.buffers,
			rows:    b.rows,
		}
	}

	b.names = nil
	b.buffers = nil
	b.values = nil
	return store
}
