package frame

// NoSlot marks an image no frame slot has submitted work against.
const NoSlot = -1

// ImageTable records, per swapchain image, the frame slot whose fence
// guards the last submission that rendered into it.
type ImageTable struct {
	owners []int
}

func NewImageTable(images int) *ImageTable {
	t := &ImageTable{}
	t.Reset(images)
	return t
}

// Reset forgets every owner and resizes the table. Called after the
// swapchain is recreated, when the device is already idle.
func (t *ImageTable) Reset(images int) {
	t.owners = make([]int, images)
	for i := range t.owners {
		t.owners[i] = NoSlot
	}
}

func (t *ImageTable) Len() int {
	return len(t.owners)
}

// Owner returns the slot owning image, or NoSlot.
func (t *ImageTable) Owner(image int) int {
	if image < 0 || image >= len(t.owners) {
		return NoSlot
	}
	return t.owners[image]
}

// Claim hands image to slot. Each image has exactly one entry, so a claim
// replaces the previous owner.
func (t *ImageTable) Claim(image, slot int) {
	t.owners[image] = slot
}
