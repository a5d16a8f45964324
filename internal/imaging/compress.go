// Package imaging prepares uploaded images for transmission to the vision
// backends. Large uploads are downscaled and re-encoded as JPEG; small
// ones pass through untouched so screenshots keep their original fidelity.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/eduintel/eduintel/internal/model"
)

// Options bound the compression pass.
type Options struct {
	// MaxEdge is the longest allowed edge in pixels. Larger images are
	// scaled down preserving aspect ratio.
	MaxEdge int

	// Quality is the JPEG quality (1-100) used when re-encoding.
	Quality int

	// ThresholdBytes is the size above which an image is always
	// re-encoded even if its dimensions fit.
	ThresholdBytes int64
}

// DefaultOptions mirror the limits the vision backends tolerate well.
func DefaultOptions() Options {
	return Options{
		MaxEdge:        1920,
		Quality:        85,
		ThresholdBytes: 20 << 20,
	}
}

// Compress decodes the image, downscales it when it exceeds the limits and
// returns a transmission-ready payload. Dimensions are always inspected;
// an image passes through unmodified only when both its byte size and its
// longest edge are within bounds.
func Compress(data []byte, opts Options) (model.ImagePayload, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.ImagePayload{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := max(width, height)

	needsResize := longest > opts.MaxEdge
	needsRecode := int64(len(data)) > opts.ThresholdBytes

	if !needsResize && !needsRecode {
		mime := "image/" + format
		return model.ImagePayload{
			MimeType:       mime,
			DataURL:        dataURL(mime, data),
			OriginalSize:   len(data),
			CompressedSize: len(data),
		}, nil
	}

	if needsResize {
		scale := float64(opts.MaxEdge) / float64(longest)
		dstW := max(1, int(float64(width)*scale))
		dstH := max(1, int(float64(height)*scale))
		dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return model.ImagePayload{}, fmt.Errorf("encode jpeg: %w", err)
	}

	slog.Debug("compressed image",
		"format", format,
		"originalBytes", len(data),
		"compressedBytes", buf.Len(),
		"resized", needsResize,
	)

	return model.ImagePayload{
		MimeType:       "image/jpeg",
		DataURL:        dataURL("image/jpeg", buf.Bytes()),
		OriginalSize:   len(data),
		CompressedSize: buf.Len(),
	}, nil
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL into its MIME type and decoded payload.
func DecodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, errors.New("missing data: prefix")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("missing payload separator")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	return mime, data, nil
}
