package device

import (
	"strings"

	"github.com/vkngwrapper/present/internal/gfxerr"
)

// FamilySupport is what one queue family of an adapter can do for us.
type FamilySupport struct {
	QueueCount int
	Graphics   bool
	Present    bool
}

// QueueFamilyIndices names the family used for each kind of work. Graphics
// and Present may be the same family.
type QueueFamilyIndices struct {
	Graphics int
	Present  int
}

// Shared reports whether one family serves both graphics and present.
func (q QueueFamilyIndices) Shared() bool {
	return q.Graphics == q.Present
}

// Unique lists each family once, graphics first.
func (q QueueFamilyIndices) Unique() []int {
	if q.Shared() {
		return []int{q.Graphics}
	}
	return []int{q.Graphics, q.Present}
}

// FindQueueFamilies picks the graphics and present families. A family doing
// both is preferred; otherwise the first graphics family and the first
// present family are paired.
func FindQueueFamilies(families []FamilySupport) (QueueFamilyIndices, bool) {
	graphics, present := -1, -1
	for idx, family := range families {
		if family.QueueCount <= 0 {
			continue
		}
		if family.Graphics && family.Present {
			return QueueFamilyIndices{Graphics: idx, Present: idx}, true
		}
		if family.Graphics && graphics < 0 {
			graphics = idx
		}
		if family.Present && present < 0 {
			present = idx
		}
	}

	if graphics < 0 || present < 0 {
		return QueueFamilyIndices{}, false
	}
	return QueueFamilyIndices{Graphics: graphics, Present: present}, true
}

// Candidate is an adapter as seen by selection.
type Candidate struct {
	Name              string
	Families          []FamilySupport
	MissingExtensions []string
	SurfaceAdequate   bool

	// QueryError is set when the adapter could not be inspected.
	QueryError error
}

// Reject explains why a candidate cannot be used, or returns "".
func (c Candidate) Reject() string {
	if c.QueryError != nil {
		return "query failed: " + c.QueryError.Error()
	}
	if _, ok := FindQueueFamilies(c.Families); !ok {
		return "no graphics and present queue families"
	}
	if len(c.MissingExtensions) > 0 {
		return "missing device extensions " + strings.Join(c.MissingExtensions, ", ")
	}
	if !c.SurfaceAdequate {
		return "surface reports no formats or present modes"
	}
	return ""
}

// SelectAdapter returns the index of the first usable candidate.
func SelectAdapter(candidates []Candidate) (int, QueueFamilyIndices, error) {
	if len(candidates) == 0 {
		return -1, QueueFamilyIndices{}, gfxerr.ErrNoAdapter
	}

	var reasons []string
	for idx, candidate := range candidates {
		reason := candidate.Reject()
		if reason == "" {
			indices, _ := FindQueueFamilies(candidate.Families)
			return idx, indices, nil
		}
		reasons = append(reasons, candidate.Name+": "+reason)
	}

	return -1, QueueFamilyIndices{}, gfxerr.Capability(gfxerr.ErrNoCompatibleDevice, "%s", strings.Join(reasons, "; "))
}
