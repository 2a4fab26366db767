package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var ErrNotWAV = errors.New("not a PCM16 mono WAV stream")

type wavHeader struct {
	Riff          [4]byte
	ChunkSize     uint32
	Wave          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// EncodeWAV wraps raw PCM16LE mono bytes in a WAV container. TTS previews and
// the mock voice use it so browsers can play the payload directly.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	_ = WriteWAV(&buf, pcm, sampleRate)
	return buf.Bytes()
}

// WriteWAV writes a canonical 44-byte header followed by pcm.
func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = OutputSampleRate
	}
	h := wavHeader{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + uint32(len(pcm)),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}
	if err := binary.Write(out, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

// DecodeWAV returns the PCM payload and sample rate of a canonical mono PCM16
// WAV file. Extended headers are not supported.
func DecodeWAV(data []byte) ([]byte, int, error) {
	var h wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, 0, ErrNotWAV
	}
	if string(h.Riff[:]) != "RIFF" || string(h.Wave[:]) != "WAVE" || string(h.Data[:]) != "data" {
		return nil, 0, ErrNotWAV
	}
	if h.AudioFormat != 1 || h.NumChannels != 1 || h.BitsPerSample != 16 {
		return nil, 0, ErrNotWAV
	}
	end := 44 + int(h.DataSize)
	if end > len(data) {
		end = len(data)
	}
	return data[44:end], int(h.SampleRate), nil
}
