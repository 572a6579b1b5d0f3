package vision

import (
	"math"

	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

// Policy chooses how a tag is picked out of a camera's observations.
type Policy int

const (
	// Nearest picks the tag with the smallest distance.
	Nearest Policy = iota
	// ByID picks the first tag whose id equals IDs[0].
	ByID
	// ByIDSetNearest picks the nearest tag whose id is in IDs. When none match
	// it falls back to the first tag in the list.
	ByIDSetNearest
)

// Selection is a policy together with the ids it applies to.
type Selection struct {
	Policy Policy
	IDs    []string
}

// NearestTag selects the closest tag regardless of id
func NearestTag() Selection {
	return Selection{Policy: Nearest}
}

// TagByID selects the first tag with the given id
func TagByID(id string) Selection {
	return Selection{Policy: ByID, IDs: []string{id}}
}

// NearestOf selects the closest tag among the given ids
func NearestOf(ids ...string) Selection {
	return Selection{Policy: ByIDSetNearest, IDs: ids}
}

// Select applies a selection to a list of observations. It reports false only
// when nothing can be selected.
func Select(tags []protocol.TagObservation, sel Selection) (protocol.TagObservation, bool) {
	if len(tags) == 0 {
		return protocol.TagObservation{}, false
	}

	switch sel.Policy {
	case ByID:
		if len(sel.IDs) == 0 {
			return protocol.TagObservation{}, false
		}
		for _, t := range tags {
			if t.TagID == sel.IDs[0] {
				return t, true
			}
		}
		return protocol.TagObservation{}, false

	case ByIDSetNearest:
		wanted := make(map[string]struct{}, len(sel.IDs))
		for _, id := range sel.IDs {
			wanted[id] = struct{}{}
		}
		var matches []protocol.TagObservation
		for _, t := range tags {
			if _, ok := wanted[t.TagID]; ok {
				matches = append(matches, t)
			}
		}
		if len(matches) == 0 {
			// No id matched: the first observation is used as is.
			return tags[0], true
		}
		return nearest(matches), true

	default:
		return nearest(tags), true
	}
}

// nearest returns the closest tag. Unknown (NaN) distances rank last; ties keep the earlier tag.
func nearest(tags []protocol.TagObservation) protocol.TagObservation {
	best := tags[0]
	for _, t := range tags[1:] {
		if closer(t.Distance, best.Distance) {
			best = t
		}
	}
	return best
}

func closer(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a < b
}
