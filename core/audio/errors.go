package audio

import "errors"

var (
	// ErrTransport covers download failures: connection errors, non-success
	// statuses and assets without a file URL.
	ErrTransport = errors.New("audio: transport failure")
	// ErrDescramble is returned when the descrambler rejects the payload.
	ErrDescramble = errors.New("audio: descramble failed")
	// ErrDecode is returned when the payload cannot be decoded to PCM.
	ErrDecode = errors.New("audio: decode failed")
	// ErrHardware is returned when the output sink cannot create or start a voice.
	ErrHardware = errors.New("audio: output failure")
)
