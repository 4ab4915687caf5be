package muscle

import "github.com/gregLibert/musclecard/pkg/iso7816"

// APPLET CONVENTIONS:
// Everything the MUSCLE applet fixes by convention lives here: instruction codes,
// applet status words, reserved object identifiers, ACL policies and per-message
// ceilings. None of these values is interpreted by the driver beyond copying it
// to the wire.

// AppletClass is the CLA byte of every applet command.
const AppletClass byte = 0xB0

// DefaultAID is the MUSCLE applet identifier.
var DefaultAID = []byte{0xA0, 0x00, 0x00, 0x00, 0x01, 0x01}

// Instruction codes.
const (
	insListObjects  iso7816.InsCode = 0x58
	insReadObject   iso7816.InsCode = 0x56
	insCreateObject iso7816.InsCode = 0x5A
	insUpdateObject iso7816.InsCode = 0x54
	insDeleteObject iso7816.InsCode = 0x52
	insVerifyPIN    iso7816.InsCode = 0x42
	insUnblockPIN   iso7816.InsCode = 0x46
	insChangePIN    iso7816.InsCode = 0x44
	insGetChallenge iso7816.InsCode = 0x72
	insGenerateKeys iso7816.InsCode = 0x30
	insExtractKey   iso7816.InsCode = 0x34
	insImportKey    iso7816.InsCode = 0x32
	insComputeCrypt iso7816.InsCode = 0x36
)

// Applet status words. 9C0F is the code observed for out-of-range reads and
// updates; the applet documentation does not confirm it.
const (
	SWEndOfList        iso7816.StatusWord = 0x9C12
	SWNoMemoryLeft     iso7816.StatusWord = 0x9C01
	SWAuthFailed       iso7816.StatusWord = 0x9C02
	SWOperationDenied  iso7816.StatusWord = 0x9C03
	SWUnsupported      iso7816.StatusWord = 0x9C05
	SWUnauthorized     iso7816.StatusWord = 0x9C06
	SWObjectNotFound   iso7816.StatusWord = 0x9C07
	SWObjectExists     iso7816.StatusWord = 0x9C08
	SWIncorrectAlg     iso7816.StatusWord = 0x9C09
	SWBadParameter     iso7816.StatusWord = 0x9C0E
	SWInvalidParameter iso7816.StatusWord = 0x9C0F
	SWBadPrivateKeyNum iso7816.StatusWord = 0x9C11
	SWIdentityBlocked  iso7816.StatusWord = iso7816.SW_ERR_AUTH_METHOD_BLOCKED
)

// ObjectID identifies a card object. It travels as 4 raw big-endian bytes.
type ObjectID uint32

// Reserved object identifiers, never allocated by callers.
const (
	// KeyStagingObject holds the key blob during ImportKey.
	KeyStagingObject ObjectID = 0xFFFFFFFE
	// OutputObject receives out-of-band challenge output and extracted keys.
	OutputObject ObjectID = 0xFFFFFFFF
)

// ACL is the opaque read/write/delete policy of an object. Each field is a
// 2-byte bitmask interpreted by the applet only.
type ACL struct {
	Read, Write, Delete uint16
}

// Opaque ACL policy values, named after their bit patterns. Stock applets
// read ACLNone as open to everyone and ACLAll as closed to everyone.
const (
	ACLAll      uint16 = 0xFFFF
	ACLNone     uint16 = 0x0000
	ACLIdentity uint16 = 0x0002 // restricted to the identity the applet reserves for keys
)

// KeyACL is the read/write/use triple the applet attaches to a key slot.
type KeyACL struct {
	Read, Write, Use uint16
}

var (
	// privateKeyACL applies to generated and imported private keys.
	privateKeyACL = KeyACL{Read: ACLAll, Write: ACLIdentity, Use: ACLIdentity}
	// publicKeyACL applies to generated public keys.
	publicKeyACL = KeyACL{Read: ACLNone, Write: ACLIdentity, Use: ACLNone}
	// stagingACL protects the key blob while it sits in KeyStagingObject.
	stagingACL = ACL{Read: ACLIdentity, Write: ACLIdentity, Delete: ACLIdentity}
)

// Per-message ceilings. A read response carries up to 255 bytes; an update
// command spends 9 bytes of its 255-byte body on id, offset and length.
const (
	MaxReadChunk  = 255
	MaxWriteChunk = 246

	// MaxCryptSeed is the Init payload room: 255 minus mode, direction, location and length.
	MaxCryptSeed = 255 - 5
	// MaxCryptChunk is the Process/Final payload room: 255 minus location and length.
	MaxCryptChunk = 255 - 3

	// inlineChallengeLimit selects the out-of-band strategy at and above this length.
	inlineChallengeLimit = 255
	// MaxChallengeSeed is the largest seed the challenge command accepts.
	MaxChallengeSeed = 250

	// MaxKeyComponent bounds the component lengths accepted from an extracted key.
	MaxKeyComponent = 1024 - 2

	maxSlot = 0x0F
)

// List cursors.
const (
	ListReset byte = 0x00
	ListNext  byte = 0x01
)

// Data location flag of the compute command.
const locationAPDU byte = 0x01

// Challenge location codes carried in P2.
const (
	challengeInline byte = 0x01
	challengeObject byte = 0x02
)

// Key blob encoding.
const encodingPlain byte = 0x00

// objectDescriptorLen is the size of one list entry: id, size and three ACL fields.
const objectDescriptorLen = 4 + 4 + 2*3
