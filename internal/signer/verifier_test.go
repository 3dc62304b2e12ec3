package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func TestRecover_Roundtrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := FromKey(key)
	h := NewHasher(testDomain())

	sig, err := s.SignOrder(h, testOrder())
	assert.NoError(t, err)
	assert.Equal(t, 65, len(sig))
	// SignDigest returns V in 27/28 form
	assert.True(t, sig[64] == 27 || sig[64] == 28)

	recovered, err := Recover(h.OrderDigest(testOrder()), sig)
	assert.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

func TestRecover_WrongSignerDoesNotMatch(t *testing.T) {
	keyA, _ := crypto.GenerateKey()
	keyB, _ := crypto.GenerateKey()
	h := NewHasher(testDomain())

	sig, err := FromKey(keyA).SignOrder(h, testOrder())
	assert.NoError(t, err)

	recovered, err := Recover(h.OrderDigest(testOrder()), sig)
	assert.NoError(t, err)
	assert.NotEqual(t, FromKey(keyB).Address(), recovered)
}

func TestRecover_DifferentDigestRecoversDifferentAddress(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := FromKey(key)
	h := NewHasher(testDomain())

	sig, err := s.SignOrder(h, testOrder())
	assert.NoError(t, err)

	tampered := testOrder()
	tampered.Sale.Nonce = big.NewInt(999)
	recovered, err := Recover(h.OrderDigest(tampered), sig)
	// Recovery itself usually succeeds but yields a different address.
	if err == nil {
		assert.NotEqual(t, s.Address(), recovered)
	}
}

func TestRecover_MalformedSignature(t *testing.T) {
	h := NewHasher(testDomain())
	digest := h.OrderDigest(testOrder())

	_, err := Recover(digest, nil)
	assert.Error(t, err)

	_, err = Recover(digest, make([]byte, 64))
	assert.Error(t, err)

	bad := make([]byte, 65)
	bad[64] = 99 // not a valid recovery id in any form
	_, err = Recover(digest, bad)
	assert.Error(t, err)
}

func TestRecover_AcceptsBothVForms(t *testing.T) {
	key, _ := crypto.GenerateKey()
	h := NewHasher(testDomain())
	digest := h.OrderDigest(testOrder())

	raw, err := crypto.Sign(digest.Bytes(), key)
	assert.NoError(t, err)

	// V in 0/1 form
	recovered, err := Recover(digest, raw)
	assert.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)

	// V in 27/28 form
	shifted := make([]byte, 65)
	copy(shifted, raw)
	shifted[64] += 27
	recovered, err = Recover(digest, shifted)
	assert.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestPermitDigest_Roundtrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	s := FromKey(key)

	token := testDomain().VerifyingContract
	sep := TokenDomain("USD Coin", "2", 1, token).Separator()

	value := big.NewInt(1000)
	nonce := big.NewInt(0)
	deadline := big.NewInt(1900000000)
	spender := testDomain().VerifyingContract

	sig, err := s.SignPermit(sep, s.Address(), spender, value, nonce, deadline)
	assert.NoError(t, err)

	recovered, err := Recover(PermitDigest(sep, s.Address(), spender, value, nonce, deadline), sig)
	assert.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)

	// A bumped nonce invalidates the credential.
	recovered, err = Recover(PermitDigest(sep, s.Address(), spender, value, big.NewInt(1), deadline), sig)
	if err == nil {
		assert.NotEqual(t, s.Address(), recovered)
	}
}

func TestNewSigner_Validation(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)

	_, err = NewSigner("not-hex")
	assert.Error(t, err)

	key, _ := crypto.GenerateKey()
	hexKey := hexutil.Encode(crypto.FromECDSA(key))[2:] // strip 0x
	s, err := NewSigner(hexKey)
	assert.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())
}
