// Package codec converts HTTP bodies between their wire encoding and the
// JSON text the dispatcher works on.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Media types.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// ErrMalformed is returned when a body cannot be decoded.
var ErrMalformed = errors.New("codec: malformed body")

// Codec translates between a wire encoding and JSON text.
type Codec interface {
	// ContentType is the media type written on responses.
	ContentType() string
	// ToJSON converts a request body to JSON text.
	ToJSON(body []byte) (json.RawMessage, error)
	// FromJSON converts JSON text to a response body.
	FromJSON(data json.RawMessage) ([]byte, error)
}

// JSON is the default codec. It validates bodies and passes them through.
var JSON Codec = jsonCodec{}

// CBOR encodes bodies as RFC 8949 CBOR.
var CBOR Codec = newCBORCodec()

// ForContentType picks the codec for a Content-Type header value.
// Anything other than CBOR is treated as JSON.
func ForContentType(contentType string) Codec {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if mediaType == ContentTypeCBOR {
		return CBOR
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string {
	return ContentTypeJSON
}

func (jsonCodec) ToJSON(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	return json.RawMessage(body), nil
}

func (jsonCodec) FromJSON(data json.RawMessage) ([]byte, error) {
	return data, nil
}

type cborCodec struct {
	dec cbor.DecMode
	enc cbor.EncMode
}

func newCBORCodec() cborCodec {
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decode options: %v", err))
	}
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encode options: %v", err))
	}
	return cborCodec{dec: dec, enc: enc}
}

func (cborCodec) ContentType() string {
	return ContentTypeCBOR
}

func (c cborCodec) ToJSON(body []byte) (json.RawMessage, error) {
	var v any
	if err := c.dec.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

func (c cborCodec) FromJSON(data json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: decode response: %w", err)
	}
	return c.enc.Marshal(normalizeNumbers(v))
}

// normalizeNumbers replaces json.Number values with int64, uint64 or
// float64 so CBOR encodes them as numbers rather than strings.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return u
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNumbers(x[k])
		}
		return x
	default:
		return v
	}
}
