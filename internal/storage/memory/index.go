package memory

// resourceIndex maps a resource to its record IDs in insertion order.
// It is not synchronized; Store guards it with its own mutex.
type resourceIndex struct {
	ids map[int64][]string
}

func newResourceIndex() *resourceIndex {
	return &resourceIndex{ids: make(map[int64][]string)}
}

func (x *resourceIndex) add(resourceID int64, id string) {
	x.ids[resourceID] = append(x.ids[resourceID], id)
}

// get returns the IDs of a resource. The slice must not be modified.
func (x *resourceIndex) get(resourceID int64) []string {
	return x.ids[resourceID]
}

func (x *resourceIndex) count(resourceID int64) int {
	return len(x.ids[resourceID])
}

// drop removes the resource and returns the IDs it had.
func (x *resourceIndex) drop(resourceID int64) []string {
	ids := x.ids[resourceID]
	delete(x.ids, resourceID)
	return ids
}
