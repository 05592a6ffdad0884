package taxios

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// FingerprintVersion is mixed into every fingerprint. Bump it when the
// canonical form changes.
const FingerprintVersion = 1

// ErrStreamingPayload is returned by Fingerprint for an io.Reader payload,
// whose content cannot be read without consuming it. Client buffers reader
// bodies before fingerprinting.
var ErrStreamingPayload = errors.New("taxios: io.Reader payload must be buffered before fingerprinting")

type fingerprintEnvelope struct {
	Version int             `json:"v"`
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload"`
	Method  string          `json:"method"`
}

// Fingerprint returns the cache and dedup key of req: a hex XXH3-128 digest of
// its URL, upper-cased method and identity payload (Params for GET, Data
// otherwise). Object keys are sorted at every depth, so two payloads that only
// differ in key order fingerprint identically.
func Fingerprint(req *Request) (string, error) {
	method := normalizeMethod(req.Method)

	payload := req.Data
	if method == MethodGet {
		payload = req.Params
	}

	canonical, err := canonicalize(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	envelope, err := json.Marshal(fingerprintEnvelope{
		Version: FingerprintVersion,
		URL:     req.URL,
		Payload: canonical,
		Method:  method,
	})
	if err != nil {
		return "", err
	}

	sum := xxh3.Hash128(envelope).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize re-encodes v through generic JSON values. encoding/json writes
// map keys in sorted order, which makes the output independent of the key
// order of the input at every nesting level. Numbers keep their literal form.
func canonicalize(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}

	if _, ok := v.(io.Reader); ok {
		return nil, ErrStreamingPayload
	}

	if raw, ok := v.([]byte); ok {
		if !json.Valid(raw) {
			// Opaque binary body: identity is the bytes themselves.
			return json.Marshal(raw)
		}
		v = json.RawMessage(raw)
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	return json.Marshal(generic)
}
