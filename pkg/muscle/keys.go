package muscle

import "fmt"

// KEY MANAGEMENT:
// Keys live in numbered slots (0-15). Blobs too large for one command travel
// through the reserved staging object: the driver writes the blob there,
// issues the import, then deletes the staging object whatever happened.
// Extraction works the other way round through OutputObject.

// Algorithm selects the key pair the card generates.
type Algorithm byte

const (
	AlgRSA    Algorithm = 0x00
	AlgRSACRT Algorithm = 0x01
	AlgDSA    Algorithm = 0x02
)

// KeyType tags key material on the wire.
type KeyType byte

const (
	KeyRSAPublic     KeyType = 0x01
	KeyRSAPrivate    KeyType = 0x02
	KeyRSAPrivateCRT KeyType = 0x03
	KeyDSAPublic     KeyType = 0x04
	KeyDSAPrivate    KeyType = 0x05
)

func (t KeyType) String() string {
	switch t {
	case KeyRSAPublic:
		return "RSA public"
	case KeyRSAPrivate:
		return "RSA private"
	case KeyRSAPrivateCRT:
		return "RSA private CRT"
	case KeyDSAPublic:
		return "DSA public"
	case KeyDSAPrivate:
		return "DSA private"
	}
	return fmt.Sprintf("KeyType(0x%02X)", byte(t))
}

// KeyMaterial is a key ready for ImportKey.
//
// KeyRSAPublic uses Modulus and Exponent (public exponent). KeyRSAPrivate
// uses Modulus and Exponent (private exponent). KeyRSAPrivateCRT uses P, Q,
// PQ (q^-1 mod p), DP1 and DQ1.
type KeyMaterial struct {
	Type KeyType
	Bits uint16

	Modulus, Exponent []byte

	P, Q, PQ, DP1, DQ1 []byte
}

// components returns the wire components of k in applet order.
func (k KeyMaterial) components(op string) ([][]byte, error) {
	type named struct {
		name string
		val  []byte
	}

	var parts []named
	switch k.Type {
	case KeyRSAPublic, KeyRSAPrivate:
		parts = []named{{"modulus", k.Modulus}, {"exponent", k.Exponent}}
	case KeyRSAPrivateCRT:
		parts = []named{{"p", k.P}, {"q", k.Q}, {"pq", k.PQ}, {"dp1", k.DP1}, {"dq1", k.DQ1}}
	default:
		return nil, invalidArgs(op, "%s keys cannot be imported", k.Type)
	}

	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p.val) == 0 {
			return nil, invalidArgs(op, "%s key without %s", k.Type, p.name)
		}
		if len(p.val) > 0xFFFF {
			return nil, invalidArgs(op, "%s component of %d bytes", p.name, len(p.val))
		}
		out = append(out, p.val)
	}
	return out, nil
}

// PublicKey is a key read back from the card.
type PublicKey struct {
	Modulus  []byte
	Exponent []byte
}

func checkSlot(op, name string, slot byte) error {
	if slot > maxSlot {
		return invalidArgs(op, "%s slot %d out of range 0..%d", name, slot, maxSlot)
	}
	return nil
}

// GenerateKeypair asks the card to generate a key pair of bits into the two slots.
// The ACLs of both keys are the fixed applet policy.
func (c *Card) GenerateKeypair(privSlot, pubSlot byte, alg Algorithm, bits uint16) error {
	const op = "generate keypair"

	if err := checkSlot(op, "private", privSlot); err != nil {
		return err
	}
	if err := checkSlot(op, "public", pubSlot); err != nil {
		return err
	}
	if bits == 0 {
		return invalidArgs(op, "zero key size")
	}

	resp, err := c.transmit(op, insGenerateKeys, privSlot, pubSlot, encodeGenerateParams(alg, bits), 0)
	if err != nil {
		return err
	}
	return c.classify(op, keyTable, resp.Status)
}

// ExtractPublicKey copies the public key of slot into OutputObject and reads
// it back. OutputObject is left in place.
func (c *Card) ExtractPublicKey(slot byte) (*PublicKey, error) {
	const op = "extract key"

	if err := checkSlot(op, "key", slot); err != nil {
		return nil, err
	}

	resp, err := c.transmit(op, insExtractKey, slot, 0x00, []byte{encodingPlain}, 0)
	if err != nil {
		return nil, err
	}
	if err := c.classify(op, keyTable, resp.Status); err != nil {
		return nil, err
	}

	// OutputObject: encoding ‖ type ‖ size(2) ‖ len(2) ‖ modulus ‖ len(2) ‖ exponent
	pos := uint32(1)
	hdr, err := c.ReadObject(OutputObject, pos, 5)
	if err != nil {
		return nil, err
	}
	pos += 5

	if t := KeyType(hdr[0]); t != KeyRSAPublic {
		return nil, unknownData(op, "extracted a %s key", t)
	}
	modLen := int(getUint16(hdr[3:5]))
	if modLen > MaxKeyComponent {
		return nil, &Error{Op: op, Kind: KindResourceExhausted, Tries: -1, Err: fmt.Errorf("modulus of %d bytes", modLen)}
	}

	body, err := c.ReadObject(OutputObject, pos, modLen+2)
	if err != nil {
		return nil, err
	}
	pos += uint32(modLen + 2)

	expLen := int(getUint16(body[modLen:]))
	if expLen > MaxKeyComponent {
		return nil, &Error{Op: op, Kind: KindResourceExhausted, Tries: -1, Err: fmt.Errorf("exponent of %d bytes", expLen)}
	}

	exp, err := c.ReadObject(OutputObject, pos, expLen)
	if err != nil {
		return nil, err
	}

	return &PublicKey{Modulus: body[:modLen:modLen], Exponent: exp}, nil
}

// ImportKey loads k into slot with the private key ACL policy.
//
// Missing components are rejected before anything is sent. The staging
// object is deleted after the import command whatever its outcome, and a
// cleanup failure never replaces the import result.
func (c *Card) ImportKey(slot byte, k KeyMaterial) error {
	const op = "import key"

	if err := checkSlot(op, "key", slot); err != nil {
		return err
	}
	components, err := k.components(op)
	if err != nil {
		return err
	}

	blob := encodeKeyBlob(k, components)
	if _, err := c.CreateObjectReplacing(KeyStagingObject, uint32(len(blob)), stagingACL); err != nil {
		return err
	}
	if _, err := c.WriteObject(KeyStagingObject, 0, blob); err != nil {
		c.dropStaging()
		return err
	}

	resp, err := c.transmit(op, insImportKey, slot, 0x00, appendKeyACL(nil, privateKeyACL), 0)
	if err == nil {
		err = c.classify(op, keyTable, resp.Status)
	}
	c.dropStaging()
	return err
}

// dropStaging is the best-effort cleanup of the import path.
func (c *Card) dropStaging() {
	if err := c.DeleteObject(KeyStagingObject, false); err != nil {
		c.log.Debug("staging cleanup failed", "err", err)
	}
}
