package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"

	"admindash/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(i *big.Int) string {
	return base64.RawURLEncoding.EncodeToString(i.Bytes())
}

func TestECKeyRoundTrips(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	jwk := JWK{Kty: "EC", Crv: "P-256", Alg: "ES256", X: b64(priv.X), Y: b64(priv.Y)}

	pemBytes, err := jwk.PEM()
	require.NoError(t, err)
	pub, err := util.ParseECDSAPublicKey(string(pemBytes))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestRSAKeyRoundTrips(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwk := JWK{Kty: "RSA", Alg: "RS256", N: b64(priv.N), E: b64(big.NewInt(int64(priv.E)))}

	pemBytes, err := jwk.PEM()
	require.NoError(t, err)
	pub, err := util.ParseRSAPublicKey(string(pemBytes))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestSigningKeySelection(t *testing.T) {
	set := JWKS{Keys: []JWK{
		{Kid: "enc", Use: "enc", Kty: "RSA"},
		{Kid: "a", Use: "sig", Kty: "EC"},
		{Kid: "b", Kty: "EC"},
	}}

	k, err := set.signingKey("")
	require.NoError(t, err)
	assert.Equal(t, "a", k.Kid)

	k, err = set.signingKey("b")
	require.NoError(t, err)
	assert.Equal(t, "b", k.Kid)

	_, err = set.signingKey("enc")
	assert.Error(t, err)
	_, err = JWKS{}.signingKey("")
	assert.Error(t, err)
}

func TestUnsupportedKeys(t *testing.T) {
	_, err := JWK{Kty: "oct"}.PEM()
	assert.Error(t, err)
	_, err = JWK{Kty: "EC", Crv: "P-384"}.PEM()
	assert.Error(t, err)
	_, err = JWK{Kty: "EC", Crv: "P-256", X: "!!", Y: "AA"}.PEM()
	assert.Error(t, err)
}
