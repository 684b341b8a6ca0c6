package protocol

// Frame is one decoded request: a command and its ordered arguments.
type Frame struct {
	Command Command
	Args    [][]byte
}

// Limits bounds how much memory a decoder will commit to a single frame.
type Limits struct {
	// MaxArgSize is the largest declared argument length that will be accepted
	MaxArgSize uint64

	// MaxTokenSize is the longest command or length token, excluding the CRLF
	MaxTokenSize int
}

func DefaultLimits() Limits {
	return Limits{
		MaxArgSize:   64 * 1024 * 1024,
		MaxTokenSize: 32,
	}
}
