package webgpu

// Adapter identifies a GPU adapter.
type Adapter struct {
	Name   string
	Vendor string
}

// String formats the adapter as "name (vendor)".
func (a Adapter) String() string {
	if a.Vendor == "" {
		return a.Name
	}
	return a.Name + " (" + a.Vendor + ")"
}
