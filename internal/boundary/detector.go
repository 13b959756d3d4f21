// Package boundary implements the byte-level automaton that recognizes a
// fixed delimiter in a stream fed one byte at a time.
package boundary

type Result int

const (
	// NoMatch means the byte is not part of a delimiter; the caller treats it
	// as literal data.
	NoMatch Result = iota
	// MatchBegin means the byte extends a partial match and must be held back.
	MatchBegin
	// MatchBroke means a partial match failed. The released bytes are no
	// longer part of any match and must be emitted as literal data, then the
	// breaking byte must be fed again.
	MatchBroke
	// MatchDone means the whole delimiter has been matched.
	MatchDone
)

func (r Result) String() string {
	switch r {
	case NoMatch:
		return "NoMatch"
	case MatchBegin:
		return "MatchBegin"
	case MatchBroke:
		return "MatchBroke"
	case MatchDone:
		return "MatchDone"
	}
	return "Result(?)"
}

// Detector matches a delimiter against bytes passed to Feed.
//
// On a broken match the detector falls back to the longest proper border of
// the matched prefix, so that delimiters overlapping themselves (e.g. "aaab"
// against "aaaaab") are still found. For delimiters without such borders the
// fallback is always position 0.
type Detector struct {
	delim    []byte
	fallback []int
	pos      int
}

func New(delim []byte) *Detector {
	d := &Detector{
		delim:    append([]byte(nil), delim...),
		fallback: make([]int, len(delim)+1),
	}
	// fallback[i] is the length of the longest proper border of delim[:i].
	k := 0
	for i := 1; i < len(d.delim); i++ {
		for k > 0 && d.delim[i] != d.delim[k] {
			k = d.fallback[k]
		}
		if d.delim[i] == d.delim[k] {
			k++
		}
		d.fallback[i+1] = k
	}
	return d
}

func (d *Detector) Delimiter() []byte {
	return d.delim
}

// Matched returns the delimiter bytes currently held in a partial match.
func (d *Detector) Matched() []byte {
	return d.delim[:d.pos]
}

func (d *Detector) Pos() int {
	return d.pos
}

func (d *Detector) Done() bool {
	return d.pos == len(d.delim)
}

func (d *Detector) Reset() {
	d.pos = 0
}

// Feed passes one byte to the detector. For MatchBroke the returned slice
// holds the released bytes; it aliases the delimiter and must not be
// modified.
func (d *Detector) Feed(b byte) (Result, []byte) {
	if d.pos >= len(d.delim) {
		return MatchDone, nil
	}
	if d.delim[d.pos] == b {
		d.pos++
		if d.pos == len(d.delim) {
			return MatchDone, nil
		}
		return MatchBegin, nil
	}
	if d.pos == 0 {
		return NoMatch, nil
	}
	next := d.fallback[d.pos]
	released := d.delim[:d.pos-next]
	d.pos = next
	return MatchBroke, released
}
