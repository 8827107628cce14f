package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Decoder turns a complete audio file into PCM. Decode may keep or modify
// data, so callers pass a copy they no longer need.
type Decoder interface {
	Decode(data []byte) (*Buffer, error)
}

// resampleQuality is the beep resampler quality; 4 is its recommended default.
const resampleQuality = 4

// BeepDecoder decodes MP3 and WAV payloads and resamples them to the output rate.
type BeepDecoder struct {
	format beep.Format
}

// NewBeepDecoder creates a decoder producing stereo PCM at sampleRate.
func NewBeepDecoder(sampleRate int) *BeepDecoder {
	return &BeepDecoder{
		format: beep.Format{
			SampleRate:  beep.SampleRate(sampleRate),
			NumChannels: 2,
			Precision:   2,
		},
	}
}

func (d *BeepDecoder) Decode(data []byte) (buf *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("%w: decoder panic: %v", ErrDecode, r)
		}
	}()

	streamer, format, err := decodeStream(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != d.format.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, d.format.SampleRate, streamer)
	}

	pcm := beep.NewBuffer(d.format)
	pcm.Append(src)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if pcm.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio frames", ErrDecode)
	}
	return NewBuffer(pcm), nil
}

func decodeStream(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch sniffFormat(data) {
	case "wav":
		return wav.Decode(bytes.NewReader(data))
	case "mp3":
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, beep.Format{}, fmt.Errorf("unrecognised audio format (%d bytes)", len(data))
	}
}

func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}
