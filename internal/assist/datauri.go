package assist

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// DataURI is a self-describing image payload, as produced by browsers'
// FileReader.readAsDataURL.
type DataURI struct {
	MIMEType string
	Data     []byte
}

// ParseDataURI parses "data:<mime>;base64,<payload>". Only image MIME types
// are accepted.
func ParseDataURI(s string) (DataURI, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return DataURI{}, fmt.Errorf("%w: payload must be base64", ErrInvalidDataURI)
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if !strings.HasPrefix(mt, "image/") {
		return DataURI{}, fmt.Errorf("%w: %s", ErrNotAnImage, mt)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return DataURI{}, ErrEmptyImage
	}
	return DataURI{MIMEType: mt, Data: data}, nil
}

// Base64 returns the payload in standard base64.
func (d DataURI) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Data)
}

func (d DataURI) String() string {
	return "data:" + d.MIMEType + ";base64," + d.Base64()
}
