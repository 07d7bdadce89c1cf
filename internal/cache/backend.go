package cache

import (
	"io"

	"github.com/pkg/errors"
)

// Backend abstracts positioned page I/O over a Source.
type Backend interface {
	// Length returns the source's byte length, as observed at construction
	// (and updated as writes extend it).
	Length() int64
	// Read fills buf (len(buf) == block size) with page's contents. If the
	// source is shorter than the page's end, Read fills only the available
	// prefix and the remainder of buf is left untouched by the backend;
	// callers must zero it themselves if they need a zero-fill contract.
	// Returns the number of bytes actually read. A page that starts at or
	// past the end of the source returns 0 and an error whose cause is
	// io.EOF.
	Read(page PageNumber, buf Block) (int, error)
	// Write writes buf (full block) to page's slot in the source. Only
	// valid for a WritableSource-backed backend.
	Write(page PageNumber, buf Block) error
	// Close stops any background worker and releases backend resources.
	// It does not close the underlying Source.
	Close() error
}

// ErrReadOnly is returned by Write when the backend was constructed over a
// Source that does not implement WritableSource.
var ErrReadOnly = errors.New("blockcache: backend source is not writable")

func pageOffset(p PageNumber, blockSize int) int64 {
	return int64(p) * int64(blockSize)
}

// queryLength seeks src to the end to recover its current length, queried
// once at construction.
func queryLength(src Source) (int64, error) {
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "blockcache: query source length")
	}
	return end, nil
}
