package region

import "sort"

// Text is one recognized line or word of text.
type Text struct {
	Text       string  `json:"text"`
	Box        Box     `json:"bbox"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Object is one detection produced by the object detector.
type Object struct {
	ClassName  string  `json:"-"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"bbox"`
}

// ByClass groups object detections by class name. Each slice keeps the
// detector's output order.
type ByClass map[string][]Object

// Add appends o under its class name.
func (c ByClass) Add(o Object) {
	c[o.ClassName] = append(c[o.ClassName], o)
}

// Has reports whether the class key is present, even with no detections.
func (c ByClass) Has(class string) bool {
	_, ok := c[class]
	return ok
}

// Classes returns the class names present, sorted.
func (c ByClass) Classes() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of detections across classes.
func (c ByClass) Count() int {
	n := 0
	for _, objs := range c {
		n += len(objs)
	}
	return n
}
