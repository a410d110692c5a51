package file

import "fmt"

type Location struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (loc Location) String() string {
	return fmt.Sprintf("[%d:%d]", loc.From, loc.To)
}

// IsZero reports whether the location was never set. Positions are measured
// in runes from the start of the source.
func (loc Location) IsZero() bool {
	return loc.From == 0 && loc.To == 0
}
