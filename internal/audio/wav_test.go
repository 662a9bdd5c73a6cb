package audio

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"
)

func TestEncodeWAV_Header(t *testing.T) {
	pcm := SamplesToBytes([]int16{1, 2, 3, 4})
	wav := EncodeWAV(pcm, DefaultFormat())

	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("Expected %d bytes, got %d", wavHeaderSize+len(pcm), len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("Expected RIFF/WAVE magic")
	}
	if !bytes.Equal(wav[wavHeaderSize:], pcm) {
		t.Error("Expected PCM payload after the header")
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	format := Format{SampleRate: 24000, Channels: 1, BitDepth: 16}
	pcm := SamplesToBytes([]int16{100, -100, 200})

	got, gotFormat, err := DecodeWAV(EncodeWAV(pcm, format))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if gotFormat != format {
		t.Errorf("Expected %+v, got %+v", format, gotFormat)
	}
	if !bytes.Equal(got, pcm) {
		t.Error("Expected PCM to survive the round trip")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":   nil,
		"webm":    []byte("\x1aE\xdf\xa3 not a wav file"),
		"no data": EncodeWAV(nil, DefaultFormat())[:36],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := DecodeWAV(data); !errors.Is(err, ErrNotWAV) {
				t.Errorf("Expected ErrNotWAV, got %v", err)
			}
		})
	}
}

func TestFormat_Duration(t *testing.T) {
	if d := DefaultFormat().Duration(32000); d != time.Second {
		t.Errorf("Expected 1s, got %v", d)
	}
	if d := (Format{}).Duration(100); d != 0 {
		t.Errorf("Expected 0 for empty format, got %v", d)
	}
}

func TestWithTempFile_RemovesFile(t *testing.T) {
	blob := Blob{Data: []byte("audio"), MIMEType: "audio/webm"}

	var seen string
	err := WithTempFile(blob, func(path string) error {
		seen = path
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if string(data) != "audio" {
			t.Errorf("Expected blob contents, got %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTempFile failed: %v", err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Error("Expected temp file to be removed")
	}
}

func TestWithTempFile_RemovesFileOnError(t *testing.T) {
	boom := errors.New("boom")

	var seen string
	err := WithTempFile(Blob{Data: []byte("x"), Filename: "clip.wav"}, func(path string) error {
		seen = path
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected callback error, got %v", err)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Error("Expected temp file to be removed after an error")
	}
}
