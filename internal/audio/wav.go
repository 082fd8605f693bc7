package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// headerSize is the size of a canonical RIFF/PCM WAV header
const headerSize = 44

// Format describes the PCM format of a recording take
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerMs returns the number of PCM bytes per millisecond of audio.
// Samples are 16-bit.
func (f Format) BytesPerMs() int {
	return (f.SampleRate * f.Channels * 2) / 1000
}

// DurationMs returns the duration of a PCM payload of the given size
func (f Format) DurationMs(dataBytes int64) int64 {
	perMs := f.BytesPerMs()
	if perMs == 0 {
		return 0
	}
	return dataBytes / int64(perMs)
}

// EncodeHeader creates a WAV header for the given format and data size
func EncodeHeader(format Format, dataSize uint32) []byte {
	bitsPerSample := uint16(16) // 16-bit PCM
	byteRate := uint32(format.SampleRate * format.Channels * int(bitsPerSample/8))
	blockAlign := uint16(format.Channels * int(bitsPerSample/8))

	header := make([]byte, headerSize)

	// RIFF chunk descriptor
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")

	// "fmt " sub-chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // 16 for PCM
	binary.LittleEndian.PutUint16(header[20:22], 1)  // 1 for PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	// "data" sub-chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	return header
}

// Info describes a parsed WAV file
type Info struct {
	Format    Format
	DataBytes int64
}

// DurationMs returns the audio duration in milliseconds
func (i Info) DurationMs() int64 {
	return i.Format.DurationMs(i.DataBytes)
}

// ReadHeader parses and validates a WAV header from the reader
func ReadHeader(r io.Reader) (Info, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Info{}, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("not a RIFF/WAVE file")
	}
	if string(header[12:16]) != "fmt " {
		return Info{}, fmt.Errorf("missing fmt sub-chunk")
	}
	if audioFormat := binary.LittleEndian.Uint16(header[20:22]); audioFormat != 1 {
		return Info{}, fmt.Errorf("unsupported audio format: %d (want PCM)", audioFormat)
	}
	if bits := binary.LittleEndian.Uint16(header[34:36]); bits != 16 {
		return Info{}, fmt.Errorf("unsupported bits per sample: %d", bits)
	}
	if string(header[36:40]) != "data" {
		return Info{}, fmt.Errorf("missing data sub-chunk")
	}

	info := Info{
		Format: Format{
			SampleRate: int(binary.LittleEndian.Uint32(header[24:28])),
			Channels:   int(binary.LittleEndian.Uint16(header[22:24])),
		},
		DataBytes: int64(binary.LittleEndian.Uint32(header[40:44])),
	}

	if info.Format.SampleRate <= 0 || info.Format.Channels <= 0 {
		return Info{}, fmt.Errorf("invalid WAV format: rate=%d channels=%d",
			info.Format.SampleRate, info.Format.Channels)
	}

	return info, nil
}

// Inspect opens a WAV file and returns its parsed header info. The data size
// is clamped to the actual payload size on disk, since streaming writers
// leave a placeholder in the header.
func Inspect(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	info, err := ReadHeader(file)
	if err != nil {
		return Info{}, err
	}

	stat, err := file.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat WAV file: %w", err)
	}
	if payload := stat.Size() - headerSize; payload < info.DataBytes {
		info.DataBytes = payload
	}
	if info.DataBytes < 0 {
		info.DataBytes = 0
	}

	return info, nil
}
