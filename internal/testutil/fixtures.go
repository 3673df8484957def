// Package testutil writes small audio fixtures for package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Tags are the ID3 text frames written by WriteMP3
type Tags struct {
	Title  string
	Artist string
	Album  string
	Year   int
	Track  int
}

// WriteMP3 writes a file holding only an ID3v2.3 tag with the given frames.
// It returns the absolute path.
func WriteMP3(t testing.TB, dir, name string, tags Tags) string {
	t.Helper()

	var frames bytes.Buffer
	writeFrame := func(id, text string) {
		if text == "" {
			return
		}
		body := append([]byte{0x00}, text...) // ISO-8859-1
		var head [10]byte
		copy(head[:4], id)
		binary.BigEndian.PutUint32(head[4:8], uint32(len(body)))
		frames.Write(head[:])
		frames.Write(body)
	}
	writeFrame("TIT2", tags.Title)
	writeFrame("TPE1", tags.Artist)
	writeFrame("TALB", tags.Album)
	if tags.Year > 0 {
		writeFrame("TYER", strconv.Itoa(tags.Year))
	}
	if tags.Track > 0 {
		writeFrame("TRCK", strconv.Itoa(tags.Track))
	}

	size := frames.Len()
	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{0x03, 0x00, 0x00})
	out.Write([]byte{
		byte(size>>21) & 0x7f,
		byte(size>>14) & 0x7f,
		byte(size>>7) & 0x7f,
		byte(size) & 0x7f,
	})
	out.Write(frames.Bytes())

	return WriteFile(t, dir, name, out.Bytes())
}

// WriteWAV writes a mono 8-bit PCM wav of the given length at 8 kHz
func WriteWAV(t testing.TB, dir, name string, seconds int) string {
	t.Helper()

	const sampleRate = 8000
	dataLen := uint32(sampleRate * seconds)

	var out bytes.Buffer
	le := binary.LittleEndian
	out.WriteString("RIFF")
	binary.Write(&out, le, 36+dataLen)
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	binary.Write(&out, le, uint32(16))
	binary.Write(&out, le, uint16(1)) // PCM
	binary.Write(&out, le, uint16(1)) // channels
	binary.Write(&out, le, uint32(sampleRate))
	binary.Write(&out, le, uint32(sampleRate)) // byte rate
	binary.Write(&out, le, uint16(1))          // block align
	binary.Write(&out, le, uint16(8))          // bits per sample
	out.WriteString("data")
	binary.Write(&out, le, dataLen)
	out.Write(bytes.Repeat([]byte{0x80}, int(dataLen)))

	return WriteFile(t, dir, name, out.Bytes())
}

// WriteFile writes data under dir, creating parent directories
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to create fixture %s: %v", name, err)
	}
	return path
}
