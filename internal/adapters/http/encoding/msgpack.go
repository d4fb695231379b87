// Package encoding negotiates JSON or MessagePack bodies for the debug API.
// MessagePack bodies reuse the json struct tags.
package encoding

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const ContentTypeMsgpack = "application/msgpack"
const ContentTypeJSON = "application/json"

// NegotiateContentType checks the Accept header and returns the preferred content type
func NegotiateContentType(r *http.Request) string {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, ContentTypeMsgpack) {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

// Write encodes data in the negotiated content type.
func Write(w http.ResponseWriter, r *http.Request, status int, data any) error {
	if NegotiateContentType(r) == ContentTypeMsgpack {
		return WriteMsgpack(w, status, data)
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteMsgpack writes a MessagePack response with the given status code
func WriteMsgpack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeMsgpack)
	w.WriteHeader(status)

	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc.Encode(data)
}

// Read decodes a request body by its Content-Type. Anything but MessagePack
// is read as JSON.
func Read(r *http.Request, target any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == ContentTypeMsgpack {
		return ReadMsgpack(r.Body, target)
	}
	return json.NewDecoder(r.Body).Decode(target)
}

// ReadMsgpack decodes one MessagePack value from body.
func ReadMsgpack(body io.Reader, target any) error {
	dec := msgpack.NewDecoder(body)
	dec.SetCustomStructTag("json")
	return dec.Decode(target)
}
