package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompressPassthroughSmallImage(t *testing.T) {
	data := encodePNG(t, 100, 80)
	got, err := Compress(data, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got.MimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", got.MimeType)
	}
	if got.CompressedSize != len(data) || got.OriginalSize != len(data) {
		t.Errorf("sizes = %d/%d, want both %d", got.OriginalSize, got.CompressedSize, len(data))
	}
	if !strings.HasPrefix(got.DataURL, "data:image/png;base64,") {
		t.Errorf("data URL prefix wrong: %.40s", got.DataURL)
	}
}

func TestCompressDownscalesOversizedEdge(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxEdge = 50

	data := encodePNG(t, 200, 100)
	got, err := Compress(data, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", got.MimeType)
	}

	payload := strings.TrimPrefix(got.DataURL, "data:image/jpeg;base64,")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 50 || cfg.Height != 25 {
		t.Errorf("dimensions = %dx%d, want 50x25", cfg.Width, cfg.Height)
	}
	if got.CompressedSize != len(raw) {
		t.Errorf("CompressedSize = %d, want %d", got.CompressedSize, len(raw))
	}
}

func TestCompressRecodesOverThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.ThresholdBytes = 64

	data := encodePNG(t, 100, 100)
	got, err := Compress(data, opts)
	if err != nil {
		t.Fatal(err)
	}
	if got.MimeType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg after threshold recode", got.MimeType)
	}
	if got.OriginalSize != len(data) {
		t.Errorf("OriginalSize = %d, want %d", got.OriginalSize, len(data))
	}
}

func TestCompressRejectsGarbage(t *testing.T) {
	if _, err := Compress([]byte("not an image"), DefaultOptions()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeDataURL(t *testing.T) {
	mime, data, err := DecodeDataURL("data:image/jpeg;base64,aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
	if string(data) != "hello" {
		t.Errorf("payload = %q", data)
	}

	for _, bad := range []string{"no-prefix", "data:image/png;base64", "data:image/png;base64,%%%"} {
		if _, _, err := DecodeDataURL(bad); err == nil {
			t.Errorf("DecodeDataURL(%q): expected error", bad)
		}
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	url := dataURL("image/png", []byte{0x89, 'P', 'N', 'G'})
	mime, data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" || !bytes.Equal(data, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("round trip = %q %v", mime, data)
	}
}
