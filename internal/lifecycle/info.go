package lifecycle

import "fmt"

// State is the storage tier a record currently lives in.
type State uint8

const (
	Decompressed State = iota
	Compressed
)

func (s State) String() string {
	switch s {
	case Decompressed:
		return "decompressed"
	case Compressed:
		return "compressed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Info is the liveness marker carried by every dehydratable record.
type Info struct {
	LastWrittenSlot uint64 `json:"last_written_slot"`
	State           State  `json:"state"`
}

// Touch marks the record hot and stamps the slot it was last written in.
func (i *Info) Touch(slot uint64) {
	i.LastWrittenSlot = slot
	i.State = Decompressed
}

// Eligible reports whether a hot record has been idle for at least delay slots.
func (i Info) Eligible(now, delay uint64) bool {
	if i.State != Decompressed || now < i.LastWrittenSlot {
		return false
	}
	return now-i.LastWrittenSlot >= delay
}
