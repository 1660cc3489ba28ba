package broker

import (
	"github.com/alphadose/haxmap"
	"github.com/casualjim/waggle/internal/future"
	"github.com/casualjim/waggle/messages"
	"github.com/google/uuid"
)

// pendingTable tracks in-flight request/response exchanges. A slot
// lives exactly as long as the RequestResponse call that created it:
// add on entry, remove on every exit path. Respond only resolves; it
// never removes, so there is a single remover and no double-removal
// race.
type pendingTable struct {
	slots *haxmap.Map[string, *future.Cell[*messages.Payload]]
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		slots: haxmap.New[string, *future.Cell[*messages.Payload]](),
	}
}

// add installs a fresh slot for the correlation id and returns its
// cell. A colliding id returns the existing cell, so two waiters on the
// same id would share one resolution; correlation ids are envelope ids,
// which makes collisions a caller bug rather than a runtime condition.
func (t *pendingTable) add(id uuid.UUID) *future.Cell[*messages.Payload] {
	cell, _ := t.slots.GetOrCompute(id.String(), future.New[*messages.Payload])
	return cell
}

// resolve completes the slot for id with result. It reports whether
// this call took effect: false means the id is unknown, expired, or
// already resolved.
func (t *pendingTable) resolve(id uuid.UUID, result *messages.Payload) bool {
	cell, ok := t.slots.Get(id.String())
	if !ok {
		return false
	}
	return cell.Complete(result)
}

// remove drops the slot for id. Safe to call for ids that were never
// added.
func (t *pendingTable) remove(id uuid.UUID) {
	t.slots.Del(id.String())
}

// size returns the number of outstanding slots.
func (t *pendingTable) size() int {
	return int(t.slots.Len())
}
