package audio

// Descrambler reverses the transport scrambling applied to downloaded audio.
// Implementations must not retain data.
type Descrambler interface {
	Descramble(data []byte) ([]byte, error)
}

// DescrambleFunc adapts a plain function to Descrambler.
type DescrambleFunc func(data []byte) ([]byte, error)

func (f DescrambleFunc) Descramble(data []byte) ([]byte, error) {
	return f(data)
}

// Passthrough returns its input unchanged, for sources that are not scrambled.
var Passthrough Descrambler = DescrambleFunc(func(data []byte) ([]byte, error) {
	return data, nil
})
