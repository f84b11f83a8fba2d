package netutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// ErrSizeLimitExceeded matches every SizeLimitError.
var ErrSizeLimitExceeded = errors.New("size limit exceeded")

// SizeLimitError reports a body larger than its limit.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("size limit exceeded: more than %s (%d bytes)", FormatSize(e.Limit), e.Limit)
}

// Is allows errors.Is(err, netutil.ErrSizeLimitExceeded).
func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimitExceeded
}

// LimitReader returns a reader that fails with *SizeLimitError as soon as
// more than limit bytes are available from r. A body of exactly limit bytes
// is accepted.
func LimitReader(r io.Reader, limit int64) io.Reader {
	// One extra byte tells an exact fit from an overflow.
	return &limitReader{r: io.LimitReader(r, limit+1), limit: limit}
}

type limitReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n - int(l.read-l.limit), &SizeLimitError{Limit: l.limit}
	}
	return n, err
}

// FormatSize returns a human-readable size in IEC units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return humanize.IBytes(uint64(bytes))
}
