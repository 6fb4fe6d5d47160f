package blob

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/oksasatya/go-post-feed/internal/application"
)

// MaxImageBytes bounds a decoded upload.
const MaxImageBytes = 8 << 20

// Image is a decoded upload ready to be written to a driver.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DecodeImage accepts a base64 data URI (data:image/png;base64,....) or a bare
// base64 payload and returns the bytes with the sniffed content type. The
// declared media type is ignored: only the bytes decide.
func DecodeImage(raw string) (*Image, error) {
	raw = strings.TrimSpace(raw)
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		comma := strings.IndexByte(raw, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data uri", application.ErrInvalidInput)
		}
		if !strings.HasSuffix(raw[:comma], ";base64") {
			return nil, fmt.Errorf("%w: data uri must be base64 encoded", application.ErrInvalidInput)
		}
		payload = raw[comma+1:]
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty image", application.ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("%w: image is not valid base64", application.ErrInvalidInput)
		}
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", application.ErrInvalidInput, MaxImageBytes)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: unsupported media type %s", application.ErrInvalidInput, mt.String())
	}
	return &Image{Data: data, ContentType: mt.String(), Ext: mt.Extension()}, nil
}

// ObjectIDFromURL returns the file name of the URL path without extension.
func ObjectIDFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

func objectKey(prefix, id, ext string) string {
	if prefix == "" {
		return id + ext
	}
	return strings.TrimSuffix(prefix, "/") + "/" + id + ext
}

// validID rejects ids that could escape the configured prefix.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
