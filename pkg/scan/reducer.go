package scan

import (
	"sort"
	"strings"

	"github.com/watchmon/watchmon/pkg/rpc"
)

// Tally counts transactions per lower-cased destination address and remembers
// the order in which addresses were first seen.
type Tally struct {
	counts map[string]int
	order  []string
}

func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

func (t *Tally) add(addr string) {
	if _, ok := t.counts[addr]; !ok {
		t.order = append(t.order, addr)
	}
	t.counts[addr]++
}

// Count returns the tally for addr, matched case-insensitively.
func (t *Tally) Count(addr string) int {
	return t.counts[strings.ToLower(addr)]
}

// Len is the number of distinct destinations.
func (t *Tally) Len() int {
	return len(t.order)
}

// Total is the sum of all counts.
func (t *Tally) Total() int {
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Ranked returns every address sorted by count descending. Equal counts keep
// first-seen order.
func (t *Tally) Ranked() []DappSummary {
	out := make([]DappSummary, 0, len(t.order))
	for _, addr := range t.order {
		out = append(out, DappSummary{Address: addr, TransactionCount: t.counts[addr]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionCount > out[j].TransactionCount
	})
	return out
}

// Reduce folds every transaction with a destination into t. A nil block counts as empty.
func Reduce(t *Tally, blk *rpc.RawBlock) {
	if blk == nil {
		return
	}
	for _, tx := range blk.Transactions {
		if tx.IsCreation() {
			continue
		}
		t.add(strings.ToLower(tx.To))
	}
}

// ReduceFiltered returns count plus the number of transactions in blk sent to address.
func ReduceFiltered(count int, blk *rpc.RawBlock, address string) int {
	if blk == nil {
		return count
	}
	for _, tx := range blk.Transactions {
		if tx.IsCreation() {
			continue
		}
		if strings.EqualFold(tx.To, address) {
			count++
		}
	}
	return count
}
