package heap

import "github.com/launchdarkly/go-jsonstream/v3/jwriter"

// PrintMemoryMap renders every block across every extent as JSON, in
// address order within each extent. This is a diagnostic only, explicitly
// non-contractual: its shape may change without notice.
func (a *Allocator) PrintMemoryMap() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := jwriter.NewWriter()
	arr := w.Array()
	for extentIndex, e := range a.extents {
		for b := e.first; b != nil; b = b.physNext {
			obj := arr.Object()
			obj.Name("extent").Int(extentIndex)
			obj.Name("offset").Int(b.offset)
			obj.Name("size").Int(b.size)
			obj.Name("free").Bool(b.free)
			obj.Name("protection").Int(int(b.prot))
			obj.End()
		}
	}
	arr.End()

	return w.Bytes(), w.Error()
}
