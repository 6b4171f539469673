package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes bounds a single upload.
const MaxImageBytes = 8 << 20

// DecodeImage sniffs raw bytes and accepts only image content.
func DecodeImage(raw []byte) (Image, error) {
	if len(raw) == 0 {
		return Image{}, ErrEmptyImage
	}
	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}
	return Image{Data: raw, MIMEType: mt.String()}, nil
}

// DecodeBase64Image accepts plain base64 or a data URL. The declared MIME
// type of a data URL is ignored in favour of the sniffed one.
func DecodeBase64Image(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Image{}, fmt.Errorf("assistant: decode image: %w", err)
	}
	return DecodeImage(raw)
}

// DataURL inlines the image, which is how the upload preview is shown when no
// bucket is configured.
func DataURL(img Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// StoredImage locates an upload kept outside the task queue message.
type StoredImage struct {
	Key string
	URL string
}

// ImageStore keeps uploads out of the task queue message.
type ImageStore interface {
	Put(ctx context.Context, name string, img Image) (StoredImage, error)
	Get(ctx context.Context, key string) (Image, error)
}

func imageExtension(mime string) string {
	if mt := mimetype.Lookup(mime); mt != nil {
		return mt.Extension()
	}
	return ""
}
