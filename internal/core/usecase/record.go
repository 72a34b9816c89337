package usecase

import (
	"sync/atomic"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

type recordSlot struct {
	result  atomic.Pointer[domain.SubResult]
	failure atomic.Pointer[string]
	filled  atomic.Bool
}

// pendingRecord collects the sub-results for one listing. Each analyzer task
// writes only its own slot; the first write to a slot wins and later writes
// are ignored, so the merged record does not depend on completion order.
type pendingRecord struct {
	listing   domain.Listing
	slots     [3]recordSlot
	remaining atomic.Int32
	settled   atomic.Bool
	final     domain.AnalysisRecord
	ready     chan struct{}
}

func newPendingRecord(listing domain.Listing) *pendingRecord {
	rec := &pendingRecord{
		listing: listing,
		ready:   make(chan struct{}),
	}
	rec.remaining.Store(int32(len(domain.Dimensions)))
	return rec
}

func dimensionSlot(dim domain.Dimension) int {
	for i, d := range domain.Dimensions {
		if d == dim {
			return i
		}
	}
	return -1
}

// put stores the outcome of one analyzer. It reports true when this call
// delivered the last missing slot.
func (r *pendingRecord) put(dim domain.Dimension, result *domain.SubResult, err error) bool {
	idx := dimensionSlot(dim)
	if idx < 0 {
		return false
	}
	slot := &r.slots[idx]
	if !slot.filled.CompareAndSwap(false, true) {
		return false
	}
	if err != nil {
		kind := domain.KindOf(err)
		slot.failure.Store(&kind)
	} else if result != nil {
		copied := *result
		slot.result.Store(&copied)
	}
	return r.remaining.Add(-1) == 0
}

// settle hands the record off exactly once. The winner freezes the snapshot
// and releases everyone waiting on ready.
func (r *pendingRecord) settle(reason string) bool {
	if !r.settled.CompareAndSwap(false, true) {
		return false
	}
	r.final = r.snapshot(reason)
	close(r.ready)
	return true
}

// wait blocks until the record has been settled and returns the frozen view.
func (r *pendingRecord) wait() domain.AnalysisRecord {
	<-r.ready
	return r.final
}

func (r *pendingRecord) status() domain.RecordStatus {
	select {
	case <-r.ready:
		return r.final.Status
	default:
	}
	if r.remaining.Load() == int32(len(domain.Dimensions)) {
		return domain.RecordPending
	}
	return domain.RecordPartiallyComplete
}

// snapshot builds the merged record from whatever slots are present.
// Slots never written are reported with missingReason.
func (r *pendingRecord) snapshot(missingReason string) domain.AnalysisRecord {
	out := domain.AnalysisRecord{Listing: r.listing}
	present := 0
	for i, dim := range domain.Dimensions {
		slot := &r.slots[i]
		if res := slot.result.Load(); res != nil {
			present++
			switch dim {
			case domain.DimensionLocality:
				out.Locality = res
			case domain.DimensionHazard:
				out.Hazard = res
			case domain.DimensionAffordability:
				out.Affordability = res
			}
			continue
		}
		if out.Failures == nil {
			out.Failures = make(map[domain.Dimension]string, len(domain.Dimensions))
		}
		if failure := slot.failure.Load(); failure != nil {
			out.Failures[dim] = *failure
		} else {
			out.Failures[dim] = missingReason
		}
	}
	if present == len(domain.Dimensions) {
		out.Status = domain.RecordComplete
	} else {
		out.Status = domain.RecordFailed
	}
	return out
}
