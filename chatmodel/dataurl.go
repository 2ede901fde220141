package chatmodel

import (
	"encoding/base64"
	"errors"
	"regexp"
)

// ErrInvalidDataURI is returned when a string does not match the expected
// data:<media-type>;base64,<payload> shape.
var ErrInvalidDataURI = errors.New("chatmodel: invalid data URI")

var dataURIPattern = regexp.MustCompile(`^data:(?P<media>[^;]+);base64,(?P<data>[A-Za-z0-9+/=]+)$`)

// ParseDataURI decodes a data URI into a Data content value.
func ParseDataURI(uri string) (Data, error) {
	match := dataURIPattern.FindStringSubmatch(uri)
	if match == nil {
		return Data{}, ErrInvalidDataURI
	}
	mediaType := match[dataURIPattern.SubexpIndex("media")]
	payload := match[dataURIPattern.SubexpIndex("data")]

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Data{}, errors.Join(ErrInvalidDataURI, err)
	}
	return Data{MediaType: mediaType, Bytes: raw}, nil
}

// FormatDataURI renders a Data content value back into a data URI.
func (d Data) FormatDataURI() string {
	return "data:" + d.MediaType + ";base64," + base64.StdEncoding.EncodeToString(d.Bytes)
}
