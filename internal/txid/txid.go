// Package txid generates ledger transaction identifiers. Ids are
// lexicographically sortable by creation time within a prefix: a fixed-width
// UTC timestamp down to microseconds, followed by a four-digit sequence that
// breaks ties when several ids are minted inside the same microsecond.
package txid

import (
	"fmt"
	"sync"
	"time"
)

const (
	// PrefixTransaction marks ordinary ledger rows.
	PrefixTransaction = "T"
	// PrefixVoid marks reversal rows so they are recognizable at a glance.
	PrefixVoid = "V"
)

var (
	mu        sync.Mutex
	lastStamp string
	lastSeq   int
)

// New returns an id of the form <prefix><yyyymmddhhmmss><microseconds><seq>.
// Successive calls never produce an id that sorts before an earlier one, even
// when the clock stalls or steps backwards.
func New(prefix string, when time.Time) string {
	stamp := when.UTC().Format("20060102150405") + fmt.Sprintf("%06d", when.UTC().Nanosecond()/1000)

	mu.Lock()
	switch {
	case stamp > lastStamp:
		lastStamp = stamp
		lastSeq = 0
	default:
		// Same microsecond, or a clock that moved backwards: stay on the
		// last stamp and advance the sequence to preserve ordering.
		stamp = lastStamp
		lastSeq++
	}
	seq := lastSeq
	mu.Unlock()

	return fmt.Sprintf("%s%s%04d", prefix, stamp, seq)
}
