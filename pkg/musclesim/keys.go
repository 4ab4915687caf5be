package musclesim

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

const (
	keyPublic     byte = 0x01
	keyPrivate    byte = 0x02
	keyPrivateCRT byte = 0x03

	dirSign    byte = 0x01
	dirVerify  byte = 0x02
	dirEncrypt byte = 0x03
	dirDecrypt byte = 0x04

	modeNoPad    byte = 0x00
	locationAPDU byte = 0x01
)

type keyACL struct {
	read, write, use uint16
}

// key is one RSA key slot. exp is e for public keys and d for plain private
// keys; CRT keys use p, q, qinv, dp and dq.
type key struct {
	typ  byte
	bits uint16
	acl  keyACL

	n, exp             *big.Int
	p, q, qinv, dp, dq *big.Int
}

func (k *key) private() bool {
	return k.typ == keyPrivate || k.typ == keyPrivateCRT
}

func (k *key) size() int {
	return (k.n.BitLen() + 7) / 8
}

// raw applies the key to m without padding.
func (k *key) raw(m *big.Int) *big.Int {
	if k.typ != keyPrivateCRT {
		return new(big.Int).Exp(m, k.exp, k.n)
	}
	m1 := new(big.Int).Exp(m, k.dp, k.p)
	m2 := new(big.Int).Exp(m, k.dq, k.q)
	h := new(big.Int).Sub(m1, m2)
	h.Mul(h, k.qinv)
	h.Mod(h, k.p)
	h.Mul(h, k.q)
	return h.Add(h, m2)
}

// blob serialises the key the way the applet exports it.
func (k *key) blob() []byte {
	var parts []*big.Int
	switch k.typ {
	case keyPublic, keyPrivate:
		parts = []*big.Int{k.n, k.exp}
	default:
		parts = []*big.Int{k.p, k.q, k.qinv, k.dp, k.dq}
	}

	b := []byte{0x00, k.typ}
	b = binary.BigEndian.AppendUint16(b, k.bits)
	for _, p := range parts {
		v := p.Bytes()
		b = binary.BigEndian.AppendUint16(b, uint16(len(v)))
		b = append(b, v...)
	}
	return b
}

// parseKeyBlob is the inverse of blob.
func parseKeyBlob(b []byte) (*key, bool) {
	if len(b) < 4 || b[0] != 0x00 {
		return nil, false
	}
	k := &key{typ: b[1], bits: binary.BigEndian.Uint16(b[2:4])}

	want := 2
	if k.typ == keyPrivateCRT {
		want = 5
	} else if k.typ != keyPublic && k.typ != keyPrivate {
		return nil, false
	}

	var parts []*big.Int
	rest := b[4:]
	for len(parts) < want {
		if len(rest) < 2 {
			return nil, false
		}
		n := int(binary.BigEndian.Uint16(rest))
		if n == 0 || len(rest) < 2+n {
			return nil, false
		}
		parts = append(parts, new(big.Int).SetBytes(rest[2:2+n]))
		rest = rest[2+n:]
	}

	if k.typ == keyPrivateCRT {
		k.p, k.q, k.qinv, k.dp, k.dq = parts[0], parts[1], parts[2], parts[3], parts[4]
		k.n = new(big.Int).Mul(k.p, k.q)
	} else {
		k.n, k.exp = parts[0], parts[1]
	}
	return k, true
}

// Key reports the type and size of the key in slot.
func (a *Applet) Key(slot byte) (typ byte, bits uint16, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if int(slot) >= maxSlots || a.keys[slot] == nil {
		return 0, 0, false
	}
	return a.keys[slot].typ, a.keys[slot].bits, true
}

func readKeyACL(b []byte) keyACL {
	return keyACL{
		read:  binary.BigEndian.Uint16(b[0:2]),
		write: binary.BigEndian.Uint16(b[2:4]),
		use:   binary.BigEndian.Uint16(b[4:6]),
	}
}

// canReplace checks the write ACL of whatever sits in slot.
func (a *Applet) canReplace(slot byte) bool {
	k := a.keys[slot]
	return k == nil || a.allows(k.acl.write)
}

func (a *Applet) generateKeyPair(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	d := cmd.Data
	if int(cmd.P1) >= maxSlots || int(cmd.P2) >= maxSlots {
		return status(swBadKeyNum)
	}
	if len(d) < 16 {
		return status(swInvalidParam)
	}
	if d[0] != 0x00 && d[0] != 0x01 {
		return status(swIncorrectAlg)
	}
	bits := binary.BigEndian.Uint16(d[1:3])
	if bits < 1024 || bits > 4096 || bits%8 != 0 {
		return status(swInvalidParam)
	}
	if !a.canReplace(cmd.P1) || !a.canReplace(cmd.P2) {
		return status(swUnauthorized)
	}

	priv, err := rsa.GenerateKey(rand.Reader, int(bits))
	if err != nil {
		a.log.Debug("key generation failed", "err", err)
		return status(swNoMemory)
	}
	priv.Precompute()

	a.keys[cmd.P1] = &key{
		typ:  keyPrivateCRT,
		bits: bits,
		acl:  readKeyACL(d[3:9]),
		n:    priv.N,
		p:    priv.Primes[0],
		q:    priv.Primes[1],
		qinv: priv.Precomputed.Qinv,
		dp:   priv.Precomputed.Dp,
		dq:   priv.Precomputed.Dq,
	}
	a.keys[cmd.P2] = &key{
		typ:  keyPublic,
		bits: bits,
		acl:  readKeyACL(d[9:15]),
		n:    priv.N,
		exp:  big.NewInt(int64(priv.E)),
	}
	return success(nil)
}

func (a *Applet) exportKey(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if len(cmd.Data) != 1 || cmd.Data[0] != 0x00 {
		return status(swInvalidParam)
	}
	if int(cmd.P1) >= maxSlots {
		return status(swBadKeyNum)
	}
	k := a.keys[cmd.P1]
	if k == nil {
		return status(swInvalidParam)
	}
	if !a.allows(k.acl.read) {
		return status(swUnauthorized)
	}
	if !a.replaceObject(outputID, k.blob()) {
		return status(swNoMemory)
	}
	return success(nil)
}

func (a *Applet) importKey(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if int(cmd.P1) >= maxSlots {
		return status(swBadKeyNum)
	}
	if len(cmd.Data) != 6 {
		return status(swInvalidParam)
	}

	staging, ok := a.objects[stagingID]
	if !ok {
		return status(swNotFound)
	}
	if !a.allows(staging.acl.read) || !a.canReplace(cmd.P1) {
		return status(swUnauthorized)
	}

	k, ok := parseKeyBlob(staging.data)
	if !ok {
		return status(swInvalidParam)
	}
	k.acl = readKeyACL(cmd.Data)
	a.keys[cmd.P1] = k
	return success(nil)
}

type cipherState struct {
	buf []byte
}

// cryptData decodes location ‖ len(2) ‖ data.
func cryptData(b []byte) ([]byte, bool) {
	if len(b) < 3 || b[0] != locationAPDU {
		return nil, false
	}
	n := int(binary.BigEndian.Uint16(b[1:3]))
	if len(b) != 3+n {
		return nil, false
	}
	return b[3:], true
}

func cryptOutput(out []byte) *iso7816.ResponseAPDU {
	b := binary.BigEndian.AppendUint16(nil, uint16(len(out)))
	return success(append(b, out...))
}

func (a *Applet) computeCrypt(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	slot := cmd.P1
	if int(slot) >= maxSlots {
		return status(swBadKeyNum)
	}
	k := a.keys[slot]
	if k == nil {
		return status(swInvalidParam)
	}

	switch cmd.P2 {
	case 0x01:
		return a.cryptInit(slot, k, cmd.Data)
	case 0x02, 0x03:
		st := a.ciphers[slot]
		if st == nil {
			return status(swOperationDenied)
		}
		chunk, ok := cryptData(cmd.Data)
		if !ok {
			a.ciphers[slot] = nil
			return status(swInvalidParam)
		}
		st.buf = append(st.buf, chunk...)
		if len(st.buf) > k.size() {
			a.ciphers[slot] = nil
			return status(swInvalidParam)
		}
		if cmd.P2 == 0x02 {
			return cryptOutput(nil)
		}
		a.ciphers[slot] = nil
		return a.cryptFinal(k, st.buf)
	}
	return status(swInvalidParam)
}

func (a *Applet) cryptInit(slot byte, k *key, d []byte) *iso7816.ResponseAPDU {
	if len(d) < 5 {
		return status(swInvalidParam)
	}
	mode, dir := d[0], d[1]
	if _, ok := cryptData(d[2:]); !ok {
		return status(swInvalidParam)
	}
	if mode != modeNoPad {
		return status(swIncorrectAlg)
	}

	switch dir {
	case dirSign, dirDecrypt:
		if !k.private() {
			return status(swInvalidParam)
		}
	case dirVerify, dirEncrypt:
		if k.private() {
			return status(swInvalidParam)
		}
	default:
		return status(swInvalidParam)
	}
	if !a.allows(k.acl.use) {
		return status(swUnauthorized)
	}

	a.ciphers[slot] = &cipherState{}
	return cryptOutput(nil)
}

func (a *Applet) cryptFinal(k *key, in []byte) *iso7816.ResponseAPDU {
	size := k.size()
	if len(in) != size {
		return status(swInvalidParam)
	}
	m := new(big.Int).SetBytes(in)
	if m.Cmp(k.n) >= 0 {
		return status(swInvalidParam)
	}
	return cryptOutput(k.raw(m).FillBytes(make([]byte, size)))
}

func (a *Applet) getChallenge(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	d := cmd.Data
	if len(d) < 4 {
		return status(swInvalidParam)
	}
	length := int(binary.BigEndian.Uint16(d[0:2]))
	seedLen := int(binary.BigEndian.Uint16(d[2:4]))
	if length == 0 || len(d) != 4+seedLen {
		return status(swInvalidParam)
	}

	out := binary.BigEndian.AppendUint16(nil, uint16(length))
	out = append(out, make([]byte, length)...)
	if _, err := io.ReadFull(a.rand, out[2:]); err != nil {
		a.log.Debug("random source failed", "err", err)
		return status(swNoMemory)
	}

	switch cmd.P2 {
	case 0x01:
		return success(out)
	case 0x02:
		if !a.replaceObject(outputID, out) {
			return status(swNoMemory)
		}
		return success(nil)
	}
	return status(swInvalidParam)
}
