package taxios

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const fingerprintTestURL = "https://api.example.com/users"

func mustFingerprint(t *testing.T, req *Request) string {
	t.Helper()
	fp, err := Fingerprint(req)
	if err != nil {
		t.Fatalf("Fingerprint() returned error: %v", err)
	}
	return fp
}

func TestFingerprintFormat(t *testing.T) {
	fp := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET"})
	if len(fp) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%s)", len(fp), fp)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	req := &Request{URL: fingerprintTestURL, Method: "GET", Params: map[string]any{"page": 1}}
	if mustFingerprint(t, req) != mustFingerprint(t, req) {
		t.Error("fingerprint should be deterministic")
	}
}

func TestFingerprintKeyOrderInvariant(t *testing.T) {
	var a, b map[string]any
	if err := json.Unmarshal([]byte(`{"b":1,"a":{"y":2,"x":[1,{"q":1,"p":2}]}}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"a":{"x":[1,{"p":2,"q":1}],"y":2},"b":1}`), &b); err != nil {
		t.Fatal(err)
	}

	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: a})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: b})
	if fa != fb {
		t.Error("payloads differing only in key order should fingerprint identically")
	}
}

func TestFingerprintRawJSONMatchesMap(t *testing.T) {
	raw := []byte(`{"b":2,"a":1}`)
	m := map[string]int{"a": 1, "b": 2}

	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: raw})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: m})
	if fa != fb {
		t.Error("raw JSON body and equivalent map should fingerprint identically")
	}
}

func TestFingerprintMethodCaseInsensitive(t *testing.T) {
	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "get"})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET"})
	if fa != fb {
		t.Error("method should be upper-cased before hashing")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": 1}}
	baseFP := mustFingerprint(t, base)

	tests := []struct {
		name string
		req  *Request
	}{
		{"url", &Request{URL: fingerprintTestURL + "/1", Method: "POST", Data: map[string]any{"id": 1}}},
		{"method", &Request{URL: fingerprintTestURL, Method: "PUT", Data: map[string]any{"id": 1}}},
		{"payload value", &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": 2}}},
		{"payload key", &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"ID": 1}}},
		{"payload type", &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": "1"}}},
		{"nested value", &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": 1, "x": map[string]any{"y": 1}}}},
		{"no payload", &Request{URL: fingerprintTestURL, Method: "POST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if mustFingerprint(t, tt.req) == baseFP {
				t.Errorf("changing %s should change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprintPayloadSelection(t *testing.T) {
	// GET ignores Data, other methods ignore Params.
	getA := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET", Params: map[string]any{"q": 1}, Data: "x"})
	getB := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET", Params: map[string]any{"q": 1}, Data: "y"})
	if getA != getB {
		t.Error("GET fingerprint should ignore Data")
	}

	postA := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Params: map[string]any{"q": 1}, Data: "x"})
	postB := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Params: map[string]any{"q": 2}, Data: "x"})
	if postA != postB {
		t.Error("POST fingerprint should ignore Params")
	}
}

func TestFingerprintArraysKeepOrder(t *testing.T) {
	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: []int{1, 2}})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: []int{2, 1}})
	if fa == fb {
		t.Error("array element order is part of the identity")
	}
}

func TestFingerprintStructMatchesMap(t *testing.T) {
	type query struct {
		Page int    `json:"page"`
		Sort string `json:"sort"`
	}
	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET", Params: query{Page: 2, Sort: "name"}})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "GET", Params: map[string]any{"sort": "name", "page": 2}})
	if fa != fb {
		t.Error("struct and equivalent map should fingerprint identically")
	}
}

func TestFingerprintLargeNumbersPreserved(t *testing.T) {
	fa := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": int64(9007199254740993)}})
	fb := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: map[string]any{"id": int64(9007199254740992)}})
	if fa == fb {
		t.Error("integers beyond float64 precision should stay distinct")
	}
}

func TestFingerprintUnencodablePayload(t *testing.T) {
	_, err := Fingerprint(&Request{URL: fingerprintTestURL, Method: "POST", Data: make(chan int)})
	if err == nil {
		t.Error("expected error for unencodable payload")
	}
}

func TestFingerprintByteBodiesDiffer(t *testing.T) {
	seen := make(map[string]string)
	for _, body := range []string{"alpha", "beta", "gamma", `{"a":1}`, `{"a":2}`} {
		fp := mustFingerprint(t, &Request{URL: fingerprintTestURL, Method: "POST", Data: []byte(body)})
		if other, ok := seen[fp]; ok {
			t.Errorf("bodies %q and %q share fingerprint %s", other, body, fp)
		}
		seen[fp] = body
	}
}

func TestFingerprintRejectsReaderPayload(t *testing.T) {
	for _, data := range []any{strings.NewReader("alpha"), bytes.NewBufferString("gamma")} {
		_, err := Fingerprint(&Request{URL: fingerprintTestURL, Method: "POST", Data: data})
		if !errors.Is(err, ErrStreamingPayload) {
			t.Errorf("Fingerprint(%T) error = %v, want ErrStreamingPayload", data, err)
		}
	}
}
