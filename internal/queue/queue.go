// Package queue derives coordinator work queues from a snapshot of leads.
//
// Queues overlap: a lead with a NO_ANSWER outcome sits in both "contacted" and
// "follow_up", and the priority buckets cut across every active queue. Each
// queue is therefore an independent predicate over a single lead rather than
// a tag, and a lead's Membership is the set of predicates it satisfies.
//
// Priority buckets include scheduled leads. A scheduled hot lead is in all,
// scheduled and hot, and is skipped only by the contact-outcome queues.
// ComputeCounts and FilterByQueue apply the same rule, so a bucket's count
// always equals the length of its filtered list.
//
// All functions in this package are pure and safe for concurrent use.
package queue

// ID identifies a queue. The set of IDs is closed.
type ID string

const (
	All         ID = "all"
	New         ID = "new"
	Contacted   ID = "contacted"
	FollowUp    ID = "follow_up"
	Callback    ID = "callback"
	Scheduled   ID = "scheduled"
	Completed   ID = "completed"
	Unreachable ID = "unreachable"
	Hot         ID = "hot"
	Medium      ID = "medium"
	Low         ID = "low"
)

// ids is in dashboard order and doubles as the bit index for Membership.
var ids = [...]ID{All, New, Contacted, FollowUp, Callback, Scheduled, Completed, Unreachable, Hot, Medium, Low}

var labels = map[ID]string{
	All:         "All Active",
	New:         "New",
	Contacted:   "Contacted",
	FollowUp:    "Follow-up",
	Callback:    "Callback",
	Scheduled:   "Scheduled",
	Completed:   "Completed",
	Unreachable: "Unreachable",
	Hot:         "Hot",
	Medium:      "Medium",
	Low:         "Low",
}

// IDs returns every queue ID in dashboard order.
func IDs() []ID {
	out := make([]ID, len(ids))
	copy(out, ids[:])
	return out
}

// ParseID reports whether s names a known queue.
func ParseID(s string) (ID, bool) {
	id := ID(s)
	if id.bit() == 0 {
		return "", false
	}
	return id, true
}

func (id ID) IsKnown() bool {
	return id.bit() != 0
}

// Label is the human-readable queue name used by the dashboards.
func (id ID) Label() string {
	if l, ok := labels[id]; ok {
		return l
	}
	return string(id)
}

func (id ID) bit() Membership {
	for i, known := range ids {
		if known == id {
			return 1 << uint(i)
		}
	}
	return 0
}

// Membership is the set of queues a single lead belongs to.
type Membership uint16

// Has reports whether the set contains id. Unknown IDs are never members.
func (m Membership) Has(id ID) bool {
	b := id.bit()
	return b != 0 && m&b != 0
}

func (m Membership) with(id ID) Membership {
	return m | id.bit()
}

// IDs lists the members in dashboard order.
func (m Membership) IDs() []ID {
	var out []ID
	for _, id := range ids {
		if m.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (m Membership) Empty() bool {
	return m == 0
}
