package ledger

import (
	"strconv"
	"time"

	"github.com/kiwari-pos/orderledger/internal/csvstore"
)

// idDateLayout renders the DDMMYY prefix of an order id.
const idDateLayout = "020106"

// IDPrefix is the part every order id of customerID on day shares.
func IDPrefix(customerID string, day time.Time) string {
	return day.Format(idDateLayout) + customerID
}

// allocate picks the next id for customerID on day: one past the highest
// sequence in the customer's ledger for that day. Ids are the plain
// concatenation of date, customer and sequence, so "bob" #11 and "bob1" #1
// render the same text. Candidates already used anywhere in the global ledger
// are skipped to keep ids unique.
func allocate(customerID string, day time.Time, cust, global *csvstore.Table) string {
	prefix := IDPrefix(customerID, day)

	highest := 0
	for _, r := range cust.Rows {
		if seq, ok := sequence(cust.Get(r, ColOrderID), prefix); ok && seq > highest {
			highest = seq
		}
	}

	taken := make(map[string]bool, len(global.Rows)+len(cust.Rows))
	for _, t := range []*csvstore.Table{global, cust} {
		for _, r := range t.Rows {
			taken[t.Get(r, ColOrderID)] = true
		}
	}

	seq := highest + 1
	for taken[prefix+strconv.Itoa(seq)] {
		seq++
	}
	return prefix + strconv.Itoa(seq)
}

// sequence extracts the numeric suffix of id after prefix.
func sequence(id, prefix string) (int, bool) {
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return 0, false
	}
	rest := id[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
