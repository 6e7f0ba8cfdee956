// Package catalog implements the signed HTTP client for the external
// catalog service: descriptor and queue lookups, download record
// registration and finalization.
//
// Every request carries two headers forming a lightweight mutual-auth
// scheme between trusted internal services:
//
//	X-Signature: fernet("{secret}&{YYYYMMDDHHMM}&{user-id}")
//	X-Referrer:  caller identity string
//
// The package also ships the Verifier for the receiving side so both
// halves of the scheme live, and are tested, in one place.
package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/fetcharr/fetcharr/internal/config"
)

// Signature header names.
const (
	HeaderSignature = "X-Signature"
	HeaderReferrer  = "X-Referrer"
)

// timestampLayout is the minute-truncated UTC timestamp embedded in
// signature tokens.
const timestampLayout = "200601021504"

// Verification errors.
var (
	ErrReferrerNotAllowed = errors.New("referrer is not on the allow-list")
	ErrBadSignature       = errors.New("signature did not decrypt")
	ErrBadToken           = errors.New("signature token is malformed")
	ErrSecretMismatch     = errors.New("shared secret does not match")
	ErrStaleSignature     = errors.New("signature timestamp outside accepted window")
)

// Signer produces the X-Signature and X-Referrer headers for outbound
// catalog requests.
type Signer struct {
	key      *fernet.Key
	secret   string
	referrer string
	now      func() time.Time
}

// NewSigner builds a signer from the catalog configuration.
func NewSigner(cfg config.CatalogConfig) (*Signer, error) {
	keys, err := fernet.DecodeKeys(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	return &Signer{
		key:      keys[0],
		secret:   cfg.SharedSecret,
		referrer: cfg.Referrer,
		now:      time.Now,
	}, nil
}

// Token returns the encrypted signature token for the acting user.
// The timestamp is truncated to the minute in UTC so that both sides
// derive the same window boundaries.
func (s *Signer) Token(userID string) (string, error) {
	payload := strings.Join([]string{
		s.secret,
		s.now().UTC().Format(timestampLayout),
		userID,
	}, "&")

	tok, err := fernet.EncryptAndSign([]byte(payload), s.key)
	if err != nil {
		return "", fmt.Errorf("encrypting signature token: %w", err)
	}
	return string(tok), nil
}

// Sign sets the signature headers on an outbound request.
func (s *Signer) Sign(req *http.Request, userID string) error {
	tok, err := s.Token(userID)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderSignature, tok)
	req.Header.Set(HeaderReferrer, s.referrer)
	return nil
}

// Verifier checks inbound signature headers. It performs three of the
// four checks of the scheme (referrer allow-list, secret match,
// timestamp window) and returns the decoded user id; resolving that id
// against a real account is the caller's responsibility since only the
// receiving service holds the account store.
type Verifier struct {
	keys    []*fernet.Key
	secret  string
	allowed map[string]struct{}
	window  time.Duration
	now     func() time.Time
}

// NewVerifier builds a verifier from the catalog configuration.
func NewVerifier(cfg config.CatalogConfig) (*Verifier, error) {
	keys, err := fernet.DecodeKeys(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedReferrers))
	for _, ref := range cfg.AllowedReferrers {
		allowed[ref] = struct{}{}
	}

	window := cfg.SignatureWindow
	if window <= 0 {
		window = time.Minute
	}

	return &Verifier{
		keys:    keys,
		secret:  cfg.SharedSecret,
		allowed: allowed,
		window:  window,
		now:     time.Now,
	}, nil
}

// Verify validates a signature and referrer pair and returns the user
// id embedded in the token. All checks must pass.
func (v *Verifier) Verify(signature, referrer string) (string, error) {
	if _, ok := v.allowed[referrer]; !ok {
		return "", ErrReferrerNotAllowed
	}

	// ttl 0 disables fernet's own expiry; the window check below is
	// the contract's freshness rule.
	payload := fernet.VerifyAndDecrypt([]byte(signature), 0, v.keys)
	if payload == nil {
		return "", ErrBadSignature
	}

	parts := strings.Split(string(payload), "&")
	if len(parts) != 3 {
		return "", ErrBadToken
	}
	secret, stamp, userID := parts[0], parts[1], parts[2]

	if secret != v.secret {
		return "", ErrSecretMismatch
	}

	issued, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return "", ErrBadToken
	}

	skew := v.now().UTC().Sub(issued)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window {
		return "", ErrStaleSignature
	}

	return userID, nil
}

// VerifyRequest validates the signature headers of an inbound request.
func (v *Verifier) VerifyRequest(req *http.Request) (string, error) {
	return v.Verify(req.Header.Get(HeaderSignature), req.Header.Get(HeaderReferrer))
}
