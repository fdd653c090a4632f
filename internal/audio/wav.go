// Package audio inspects LINEAR16 payloads: raw little-endian PCM or PCM
// wrapped in a RIFF/WAVE container.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	wavHeaderSize  = 44
	formatPCM      = 1
	formatExtended = 0xFFFE
)

var (
	ErrEmpty              = errors.New("audio payload is empty")
	ErrNotWAV             = errors.New("payload is not a RIFF/WAVE container")
	ErrTruncated          = errors.New("audio payload is truncated")
	ErrUnsupportedFormat  = errors.New("unsupported WAV sample format")
	ErrSampleRateMismatch = errors.New("declared sample rate does not match audio header")
	ErrOddLength          = errors.New("16-bit PCM payload has an odd number of bytes")
)

// WAVInfo describes the fmt and data chunks of a WAV container.
type WAVInfo struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataOffset    int
	DataSize      int
}

// Duration is the playback length of the data chunk.
func (i *WAVInfo) Duration() time.Duration {
	frame := int(i.Channels) * int(i.BitsPerSample) / 8
	if frame == 0 || i.SampleRate == 0 {
		return 0
	}
	frames := i.DataSize / frame
	return time.Duration(frames) * time.Second / time.Duration(i.SampleRate)
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// ParseWAV walks the RIFF chunk list and returns the fmt and data chunk
// metadata. Chunks other than fmt and data (LIST, fact, ...) are skipped.
func ParseWAV(data []byte) (*WAVInfo, error) {
	if !IsWAV(data) {
		return nil, ErrNotWAV
	}

	info := &WAVInfo{}
	var haveFmt, haveData bool
	off := 12
	for off+8 <= len(data) && !(haveFmt && haveData) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			if id == "data" {
				// Streaming writers leave the data size unset; take what is there.
				size = len(data) - body
			} else {
				return nil, fmt.Errorf("%w: chunk %q", ErrTruncated, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrTruncated, size)
			}
			chunk := data[body : body+size]
			info.AudioFormat = binary.LittleEndian.Uint16(chunk[0:2])
			info.Channels = binary.LittleEndian.Uint16(chunk[2:4])
			info.SampleRate = binary.LittleEndian.Uint32(chunk[4:8])
			info.BitsPerSample = binary.LittleEndian.Uint16(chunk[14:16])
			haveFmt = true
		case "data":
			info.DataOffset = body
			info.DataSize = size
			haveData = true
		}

		// chunks are word aligned
		off = body + size + size%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrTruncated)
	}
	if !haveData {
		return nil, fmt.Errorf("%w: missing data chunk", ErrTruncated)
	}
	return info, nil
}

// ValidateLinear16 checks that data is usable as LINEAR16 audio at the
// declared sample rate. sampleRate <= 0 skips the rate check.
func ValidateLinear16(data []byte, sampleRate int) error {
	if len(data) == 0 {
		return ErrEmpty
	}

	if !IsWAV(data) {
		if len(data)%2 != 0 {
			return ErrOddLength
		}
		return nil
	}

	info, err := ParseWAV(data)
	if err != nil {
		return err
	}
	if info.AudioFormat != formatPCM && info.AudioFormat != formatExtended {
		return fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, info.AudioFormat)
	}
	if info.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, info.BitsPerSample)
	}
	if info.Channels == 0 {
		return fmt.Errorf("%w: zero channels", ErrUnsupportedFormat)
	}
	if sampleRate > 0 && int(info.SampleRate) != sampleRate {
		return fmt.Errorf("%w: header says %d Hz, request says %d Hz", ErrSampleRateMismatch, info.SampleRate, sampleRate)
	}
	if info.DataSize == 0 {
		return ErrEmpty
	}
	return nil
}

// EnsureWAV returns data unchanged when it already is a WAV container and
// otherwise wraps raw mono 16-bit PCM into one.
func EnsureWAV(data []byte, sampleRate int) ([]byte, error) {
	if IsWAV(data) {
		return data, nil
	}
	return EncodePCM16(data, sampleRate, 1)
}

// EncodePCM16 wraps raw little-endian 16-bit PCM in a canonical 44-byte
// WAV header.
func EncodePCM16(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, ErrEmpty
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
