package muscle

import (
	"encoding/binary"
	"fmt"
)

// WIRE CODEC:
// The applet is big-endian for every multi-byte field: object ids and offsets
// (4 bytes), object sizes (4 bytes), ACL fields and lengths (2 bytes). The
// helpers below are the only place where integers cross the wire.

func appendUint16(b []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(b, v) }
func appendUint32(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }
func getUint16(b []byte) uint16              { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32              { return binary.BigEndian.Uint32(b) }

// ObjectInfo is one descriptor returned by ListObjects.
type ObjectInfo struct {
	ID   ObjectID
	Size uint32
	ACL  ACL
}

func (o ObjectInfo) String() string {
	return fmt.Sprintf("%08X size=%d acl=r:%04X w:%04X d:%04X", uint32(o.ID), o.Size, o.ACL.Read, o.ACL.Write, o.ACL.Delete)
}

func appendACL(b []byte, acl ACL) []byte {
	b = appendUint16(b, acl.Read)
	b = appendUint16(b, acl.Write)
	return appendUint16(b, acl.Delete)
}

func appendKeyACL(b []byte, acl KeyACL) []byte {
	b = appendUint16(b, acl.Read)
	b = appendUint16(b, acl.Write)
	return appendUint16(b, acl.Use)
}

// decodeObjectInfo parses a 14-byte list entry: id, size, read, write, delete.
func decodeObjectInfo(b []byte) (ObjectInfo, error) {
	if len(b) != objectDescriptorLen {
		return ObjectInfo{}, fmt.Errorf("expected %d bytes, got %d", objectDescriptorLen, len(b))
	}
	return ObjectInfo{
		ID:   ObjectID(getUint32(b[0:4])),
		Size: getUint32(b[4:8]),
		ACL: ACL{
			Read:   getUint16(b[8:10]),
			Write:  getUint16(b[10:12]),
			Delete: getUint16(b[12:14]),
		},
	}, nil
}

// encodeChunkHeader builds the id ‖ offset ‖ length prefix of read and update commands.
func encodeChunkHeader(id ObjectID, offset uint32, length int) []byte {
	b := make([]byte, 0, 9)
	b = appendUint32(b, uint32(id))
	b = appendUint32(b, offset)
	return append(b, byte(length))
}

// encodeKeyBlob serialises key material for the staging object:
// encoding ‖ type ‖ size(2) ‖ { len(2) ‖ component }...
func encodeKeyBlob(k KeyMaterial, components [][]byte) []byte {
	size := 4
	for _, c := range components {
		size += 2 + len(c)
	}

	b := make([]byte, 0, size)
	b = append(b, encodingPlain, byte(k.Type))
	b = appendUint16(b, k.Bits)
	for _, c := range components {
		b = appendUint16(b, uint16(len(c)))
		b = append(b, c...)
	}
	return b
}

// encodeGenerateParams builds the fixed 16-byte key generation block.
func encodeGenerateParams(alg Algorithm, bits uint16) []byte {
	b := make([]byte, 0, 16)
	b = append(b, byte(alg))
	b = appendUint16(b, bits)
	b = appendKeyACL(b, privateKeyACL)
	b = appendKeyACL(b, publicKeyACL)
	return append(b, 0x00) // options
}

// encodeCryptInit builds mode ‖ direction ‖ location ‖ len(2) ‖ seed.
func encodeCryptInit(mode CipherMode, dir Direction, seed []byte) []byte {
	b := make([]byte, 0, 5+len(seed))
	b = append(b, byte(mode), byte(dir), locationAPDU)
	b = appendUint16(b, uint16(len(seed)))
	return append(b, seed...)
}

// encodeCryptData builds location ‖ len(2) ‖ chunk for Process and Final.
func encodeCryptData(chunk []byte) []byte {
	b := make([]byte, 0, 3+len(chunk))
	b = append(b, locationAPDU)
	b = appendUint16(b, uint16(len(chunk)))
	return append(b, chunk...)
}

// decodeLengthPrefixed reads len(2) ‖ data and returns data. Trailing bytes are
// tolerated, a short body is not.
func decodeLengthPrefixed(b []byte) ([]byte, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("missing length header, got %d bytes", len(b))
	}
	n := int(getUint16(b))
	if len(b)-2 < n {
		return nil, fmt.Errorf("header announces %d bytes, %d present", n, len(b)-2)
	}
	return b[2 : 2+n], nil
}

// encodeChallengeRequest builds dataLen(2) ‖ seedLen(2) ‖ seed.
func encodeChallengeRequest(length int, seed []byte) []byte {
	b := make([]byte, 0, 4+len(seed))
	b = appendUint16(b, uint16(length))
	b = appendUint16(b, uint16(len(seed)))
	return append(b, seed...)
}
