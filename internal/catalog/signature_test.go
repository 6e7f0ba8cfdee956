package catalog

import (
	"net/http"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetcharr/fetcharr/internal/config"
)

func testCatalogConfig(t *testing.T) config.CatalogConfig {
	t.Helper()

	var key fernet.Key
	require.NoError(t, key.Generate())

	return config.CatalogConfig{
		BaseURL:          "http://catalog.local",
		Referrer:         "fetcharr",
		SigningKey:       key.Encode(),
		SharedSecret:     "s3cret",
		AllowedReferrers: []string{"fetcharr", "frontend"},
		Timeout:          10 * time.Second,
		SignatureWindow:  time.Minute,
	}
}

func TestSignerVerifierRoundTrip(t *testing.T) {
	cfg := testCatalogConfig(t)

	signer, err := NewSigner(cfg)
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)

	tok, err := signer.Token("user-42")
	require.NoError(t, err)

	userID, err := verifier.Verify(tok, "fetcharr")
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestSignSetsHeaders(t *testing.T) {
	cfg := testCatalogConfig(t)
	signer, err := NewSigner(cfg)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://catalog.local/api/cac/meta/abc", nil)
	require.NoError(t, err)
	require.NoError(t, signer.Sign(req, "user-42"))

	assert.NotEmpty(t, req.Header.Get(HeaderSignature))
	assert.Equal(t, "fetcharr", req.Header.Get(HeaderReferrer))

	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)
	userID, err := verifier.VerifyRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerifyRejections(t *testing.T) {
	cfg := testCatalogConfig(t)

	signer, err := NewSigner(cfg)
	require.NoError(t, err)
	verifier, err := NewVerifier(cfg)
	require.NoError(t, err)

	t.Run("unknown referrer", func(t *testing.T) {
		tok, err := signer.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "stranger")
		assert.ErrorIs(t, err, ErrReferrerNotAllowed)
	})

	t.Run("garbage signature", func(t *testing.T) {
		_, err := verifier.Verify("not-a-fernet-token", "fetcharr")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		otherCfg := testCatalogConfig(t)
		otherSigner, err := NewSigner(otherCfg)
		require.NoError(t, err)

		tok, err := otherSigner.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "fetcharr")
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		badCfg := cfg
		badCfg.SharedSecret = "different"
		badSigner, err := NewSigner(badCfg)
		require.NoError(t, err)

		tok, err := badSigner.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "fetcharr")
		assert.ErrorIs(t, err, ErrSecretMismatch)
	})

	t.Run("malformed payload", func(t *testing.T) {
		keys, err := fernet.DecodeKeys(cfg.SigningKey)
		require.NoError(t, err)
		tok, err := fernet.EncryptAndSign([]byte("only-one-part"), keys[0])
		require.NoError(t, err)

		_, err = verifier.Verify(string(tok), "fetcharr")
		assert.ErrorIs(t, err, ErrBadToken)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		signer.now = func() time.Time {
			return time.Now().Add(-5 * time.Minute)
		}
		defer func() { signer.now = time.Now }()

		tok, err := signer.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "fetcharr")
		assert.ErrorIs(t, err, ErrStaleSignature)
	})

	t.Run("future timestamp", func(t *testing.T) {
		signer.now = func() time.Time {
			return time.Now().Add(5 * time.Minute)
		}
		defer func() { signer.now = time.Now }()

		tok, err := signer.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "fetcharr")
		assert.ErrorIs(t, err, ErrStaleSignature)
	})

	t.Run("window boundary", func(t *testing.T) {
		// Pin both clocks so minute truncation is deterministic.
		base := time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)
		signer.now = func() time.Time { return base }
		defer func() { signer.now = time.Now }()
		verifier.now = func() time.Time { return base.Add(59 * time.Second) }
		defer func() { verifier.now = time.Now }()

		tok, err := signer.Token("user-42")
		require.NoError(t, err)

		_, err = verifier.Verify(tok, "fetcharr")
		assert.NoError(t, err)

		verifier.now = func() time.Time { return base.Add(2 * time.Minute) }
		_, err = verifier.Verify(tok, "fetcharr")
		assert.ErrorIs(t, err, ErrStaleSignature)
	})
}
