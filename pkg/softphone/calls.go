package softphone

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// More concurrent dialogs than any sandbox scenario drives; the TTL
	// reaps dialogs whose BYE never arrived.
	maxTrackedCalls = 64
	trackedCallTTL  = time.Hour
)

// callTable keys inbound dialog state by Call-ID so concurrent calls and
// re-INVITEs keep their own identity instead of overwriting each other.
type callTable struct {
	byCallID *expirable.LRU[string, *inboundCall]
}

func newCallTable() *callTable {
	return &callTable{
		byCallID: expirable.NewLRU[string, *inboundCall](maxTrackedCalls, nil, trackedCallTTL),
	}
}

func (t *callTable) get(callID string) (*inboundCall, bool) {
	return t.byCallID.Get(callID)
}

func (t *callTable) put(call *inboundCall) {
	t.byCallID.Add(call.callID, call)
	metricActiveCalls.Set(float64(t.byCallID.Len()))
}

func (t *callTable) remove(callID string) {
	t.byCallID.Remove(callID)
	metricActiveCalls.Set(float64(t.byCallID.Len()))
}
