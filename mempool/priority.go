package mempool

import (
	"math"
	"sort"

	"ecdpchain/core/types"
)

// Lanes groups transactions into the liquidation and signed scheduling
// queues.
type Lanes struct {
	Unsigned []*types.Transaction
	Signed   []*types.Transaction
}

// IsLiquidationLaneEligible reports whether the transaction should be routed
// through the reserved lane. Only permissionless liquidate and settle calls
// qualify.
func IsLiquidationLaneEligible(tx *types.Transaction) bool {
	return tx != nil && tx.Type == types.TxTypeUnsigned
}

// Classify separates transactions into the unsigned and signed lanes,
// keeping arrival order inside each lane.
func Classify(txs []*types.Transaction) Lanes {
	lanes := Lanes{Unsigned: make([]*types.Transaction, 0, len(txs)), Signed: make([]*types.Transaction, 0, len(txs))}
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if IsLiquidationLaneEligible(tx) {
			lanes.Unsigned = append(lanes.Unsigned, tx)
			continue
		}
		lanes.Signed = append(lanes.Signed, tx)
	}
	return lanes
}

// Usage captures how much of the reserved lane an upcoming block consumes.
type Usage struct {
	Target        int
	Used          int
	TotalUnsigned int
}

// ReservedSlots is the number of block slots kept for unsigned calls when a
// block holds maxTxs transactions and percent of it is reserved.
func ReservedSlots(maxTxs int, percent uint32) int {
	if maxTxs <= 0 || percent == 0 {
		return 0
	}
	if percent >= 100 {
		return maxTxs
	}
	return int(math.Ceil(float64(maxTxs) * float64(percent) / 100))
}

// Schedule interleaves the lanes so that the first maxTxs entries respect
// the reservation. Unused reserved slots fall through to signed calls and
// vice versa.
func Schedule(lanes Lanes, maxTxs int, reservedPercent uint32) ([]*types.Transaction, Usage) {
	total := len(lanes.Unsigned) + len(lanes.Signed)
	if total == 0 {
		return nil, Usage{}
	}
	if maxTxs <= 0 || maxTxs > total {
		maxTxs = total
	}

	target := ReservedSlots(maxTxs, reservedPercent)
	unsignedTake := int(math.Min(float64(target), float64(len(lanes.Unsigned))))
	signedTake := maxTxs - unsignedTake
	if signedTake > len(lanes.Signed) {
		signedTake = len(lanes.Signed)
	}
	if remaining := maxTxs - (unsignedTake + signedTake); remaining > 0 {
		unsignedTake += remaining
	}

	ordered := make([]*types.Transaction, 0, total)
	ordered = append(ordered, lanes.Unsigned[:unsignedTake]...)
	ordered = append(ordered, lanes.Signed[:signedTake]...)
	ordered = append(ordered, lanes.Unsigned[unsignedTake:]...)
	ordered = append(ordered, lanes.Signed[signedTake:]...)

	return ordered, Usage{
		Target:        target,
		Used:          unsignedTake,
		TotalUnsigned: len(lanes.Unsigned),
	}
}

// sortByPriority orders entries by descending priority, then arrival.
func sortByPriority(entries []*entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
}
