package telephony

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the carrier's request signature.
const SignatureHeader = "X-Carrier-Signature"

var (
	// ErrMissingSignature indicates the signature header was absent.
	ErrMissingSignature = errors.New("telephony: missing signature header")

	// ErrBadSignature indicates the signature did not match.
	ErrBadSignature = errors.New("telephony: signature mismatch")
)

// Validator checks that webhook requests were signed by the carrier.
//
// The carrier signs each request with HMAC-SHA256 over the full public URL
// followed by the form fields sorted by key, base64-encoded. A disabled
// Validator accepts everything, which is only acceptable in development.
type Validator struct {
	token   string
	baseURL string
	enabled bool
}

// NewValidator builds a Validator with the shared auth token. baseURL, when
// non-empty, is the public base URL the carrier actually addressed; behind a
// proxy the request URL seen by this process differs from the signed one.
func NewValidator(token, baseURL string, enabled bool) *Validator {
	if enabled && token == "" {
		slog.Warn("signature validation enabled without an auth token, all webhooks will be rejected")
	}
	return &Validator{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		enabled: enabled,
	}
}

// Enabled reports whether validation is enforced.
func (v *Validator) Enabled() bool {
	return v.enabled
}

// Validate checks the signature on an incoming webhook request. form must be
// the already-parsed POST form. Returns nil when validation is disabled.
func (v *Validator) Validate(r *http.Request, form url.Values) error {
	if !v.enabled {
		return nil
	}

	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		slog.Warn("webhook rejected, no signature header",
			slog.String("path", r.URL.Path))
		return ErrMissingSignature
	}
	if v.token == "" {
		return ErrBadSignature
	}

	want := Signature(v.token, v.canonicalURL(r), form)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		slog.Warn("webhook rejected, signature mismatch",
			slog.String("path", r.URL.Path))
		return ErrBadSignature
	}
	return nil
}

// Signature computes the base64-encoded HMAC-SHA256 signature for a request:
// the full URL, then each form field appended as key+value in key order.
// Repeated fields contribute their first value.
func Signature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha256.New, []byte(token))
	io.WriteString(mac, fullURL)
	for _, k := range keys {
		io.WriteString(mac, k)
		if vs := form[k]; len(vs) > 0 {
			io.WriteString(mac, vs[0])
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// canonicalURL rebuilds the URL the carrier signed. With a configured base
// URL its scheme and host replace the request's; otherwise the request's own
// host and scheme are trusted.
func (v *Validator) canonicalURL(r *http.Request) string {
	if v.baseURL != "" {
		return v.baseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
