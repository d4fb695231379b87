package domain

// FragmentKind tells the receiver where a binary chunk sits within its message.
type FragmentKind int

const (
	// FragmentStart opens a fragmented binary message.
	FragmentStart FragmentKind = iota
	// FragmentContinue is a middle chunk; more follow.
	FragmentContinue
	// FragmentFinish is the last chunk of a fragmented message.
	FragmentFinish
	// FragmentWhole is a complete, unfragmented message.
	FragmentWhole
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentStart:
		return "start"
	case FragmentContinue:
		return "continue"
	case FragmentFinish:
		return "finish"
	case FragmentWhole:
		return "whole"
	default:
		return "unknown"
	}
}

// Final reports whether the chunk completes its message.
func (k FragmentKind) Final() bool {
	return k == FragmentFinish || k == FragmentWhole
}
