package player

type PlaybackState int

const (
	Idle PlaybackState = iota
	Playing
	Paused
)

func (s PlaybackState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopCurrent
)

func (m LoopMode) String() string {
	if m == LoopCurrent {
		return "current"
	}
	return "none"
}
