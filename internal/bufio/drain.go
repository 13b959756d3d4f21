package bufio

import (
	"io"

	"github.com/teawithsand/smtpc/internal/errs"
)

// Drain reads any reader until io.EOF and returns the number of bytes
// read. A source that keeps returning no data and no error fails with
// errs.ErrNoProgress after errs.MaxEmptyReads attempts.
func Drain(r io.Reader) (int64, error) {
	var buf [512]byte
	var total int64
	empty := 0
	for {
		n, err := r.Read(buf[:])
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n > 0 {
			empty = 0
			continue
		}
		empty++
		if empty > errs.MaxEmptyReads {
			return total, errs.ErrNoProgress
		}
	}
}
