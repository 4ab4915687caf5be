package muscle

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"
)

// KeyMaterialFromRSA converts priv to importable material, in CRT form when crt
// is set and as modulus plus private exponent otherwise.
func KeyMaterialFromRSA(priv *rsa.PrivateKey, crt bool) (KeyMaterial, error) {
	if len(priv.Primes) != 2 {
		return KeyMaterial{}, fmt.Errorf("rsa key with %d primes", len(priv.Primes))
	}
	if priv.N.BitLen() > 0xFFFF {
		return KeyMaterial{}, errors.New("rsa modulus too large")
	}
	priv.Precompute()

	k := KeyMaterial{Bits: uint16(priv.N.BitLen())}
	if !crt {
		k.Type = KeyRSAPrivate
		k.Modulus = priv.N.Bytes()
		k.Exponent = priv.D.Bytes()
		return k, nil
	}

	k.Type = KeyRSAPrivateCRT
	k.P = priv.Primes[0].Bytes()
	k.Q = priv.Primes[1].Bytes()
	k.PQ = priv.Precomputed.Qinv.Bytes()
	k.DP1 = priv.Precomputed.Dp.Bytes()
	k.DQ1 = priv.Precomputed.Dq.Bytes()
	return k, nil
}

// KeyMaterialFromRSAPublic converts pub to importable material.
func KeyMaterialFromRSAPublic(pub *rsa.PublicKey) KeyMaterial {
	return KeyMaterial{
		Type:     KeyRSAPublic,
		Bits:     uint16(pub.N.BitLen()),
		Modulus:  pub.N.Bytes(),
		Exponent: big.NewInt(int64(pub.E)).Bytes(),
	}
}

// RSA returns p as a crypto/rsa key.
func (p *PublicKey) RSA() (*rsa.PublicKey, error) {
	if len(p.Modulus) == 0 {
		return nil, errors.New("empty modulus")
	}
	e := new(big.Int).SetBytes(p.Exponent)
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("unsupported public exponent %X", p.Exponent)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(p.Modulus), E: int(e.Int64())}, nil
}
