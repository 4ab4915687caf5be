package muscle

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/musclecard/pkg/tlv"
	"github.com/stretchr/testify/require"
)

func TestListObjects(t *testing.T) {
	t.Run("Descriptor", func(t *testing.T) {
		card, tr := newScripted(t, ok("0000ABCD 00000100 0000 0002 FFFF"))

		info, err := card.ListObjects(ListReset)
		require.NoError(t, err)

		want := &ObjectInfo{ID: 0xABCD, Size: 256, ACL: ACL{Read: ACLNone, Write: ACLIdentity, Delete: ACLAll}}
		if diff := cmp.Diff(want, info); diff != "" {
			t.Errorf("ObjectInfo mismatch (-want +got):\n%s", diff)
		}
		require.Equal(t, tlv.Hex("B0 58 00 00 0E"), tr.raw()[0])
		require.Equal(t, "0000ABCD size=256 acl=r:0000 w:0002 d:FFFF", info.String())
	})

	t.Run("EndOfList", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C12))

		info, err := card.ListObjects(ListNext)
		require.NoError(t, err)
		require.Nil(t, info)
		require.Equal(t, tlv.Hex("B0 58 01 00 0E"), tr.raw()[0])
	})

	t.Run("EmptySuccess", func(t *testing.T) {
		card, _ := newScripted(t, ok(""))

		info, err := card.ListObjects(ListNext)
		require.NoError(t, err)
		require.Nil(t, info)
	})

	t.Run("TruncatedDescriptor", func(t *testing.T) {
		card, _ := newScripted(t, ok("0000ABCD 0000"))

		_, err := card.ListObjects(ListReset)
		require.ErrorIs(t, err, ErrUnknownDataReceived)
	})

	t.Run("Failure", func(t *testing.T) {
		card, _ := newScripted(t, sw(0x6D00))

		_, err := card.ListObjects(ListReset)
		require.ErrorIs(t, err, ErrGeneric)
	})
}

func TestObjects(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C12))

		objects, err := card.Objects()
		require.NoError(t, err)
		require.Empty(t, objects)
		require.Len(t, tr.sent, 1)
		require.Equal(t, ListReset, tr.sent[0].P1)
	})

	t.Run("ResetThenNext", func(t *testing.T) {
		card, tr := newScripted(t,
			ok("00000001 00000010 0000 0000 0000"),
			ok("00000002 00000020 0002 0002 0002"),
			ok(""),
		)

		objects, err := card.Objects()
		require.NoError(t, err)
		require.Len(t, objects, 2)
		require.Equal(t, ObjectID(2), objects[1].ID)
		require.Equal(t, []byte{ListReset, ListNext, ListNext}, []byte{tr.sent[0].P1, tr.sent[1].P1, tr.sent[2].P1})
	})
}

func TestReadObject(t *testing.T) {
	t.Run("Chunked", func(t *testing.T) {
		first := bytes.Repeat([]byte{0x11}, 255)
		second := bytes.Repeat([]byte{0x22}, 45)
		card, tr := newScripted(t, okBytes(first), okBytes(second))

		data, err := card.ReadObject(0x01020304, 16, 300)
		require.NoError(t, err)
		require.Equal(t, append(bytes.Clone(first), second...), data)

		want := [][]byte{
			tlv.Hex("B0 56 00 00 09 01020304 00000010 FF FF"),
			tlv.Hex("B0 56 00 00 09 01020304 0000010F 2D 2D"),
		}
		if diff := cmp.Diff(want, tr.raw()); diff != "" {
			t.Errorf("Sent mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		card, tr := newScripted(t)

		data, err := card.ReadObject(1, 0, 0)
		require.NoError(t, err)
		require.Empty(t, data)
		require.Empty(t, tr.sent)
	})

	t.Run("AbortsOnFailure", func(t *testing.T) {
		card, tr := newScripted(t, okBytes(make([]byte, 255)), sw(0x9C06))

		data, err := card.ReadObject(1, 0, 600)
		require.ErrorIs(t, err, ErrNotAllowed)
		require.Nil(t, data)
		require.Len(t, tr.sent, 2)
	})

	t.Run("ShortResponse", func(t *testing.T) {
		card, _ := newScripted(t, ok("0102"))

		_, err := card.ReadObject(1, 0, 3)
		require.ErrorIs(t, err, ErrUnknownDataReceived)
	})

	t.Run("NotFound", func(t *testing.T) {
		card, _ := newScripted(t, sw(0x9C07))

		_, err := card.ReadObject(1, 0, 3)
		require.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("RangeOverflow", func(t *testing.T) {
		card, tr := newScripted(t)

		_, err := card.ReadObject(1, 0xFFFFFFFF, 2)
		require.ErrorIs(t, err, ErrInvalidArguments)

		_, err = card.ReadObject(1, 0, -1)
		require.ErrorIs(t, err, ErrInvalidArguments)
		require.Empty(t, tr.sent)
	})
}

func TestWriteObject(t *testing.T) {
	t.Run("Chunked", func(t *testing.T) {
		data := bytes.Repeat([]byte{0x5A}, 247)
		card, tr := newScripted(t, ok(""), ok(""))

		n, err := card.WriteObject(0x0A0B0C0D, 0, data)
		require.NoError(t, err)
		require.Equal(t, 247, n)

		raw := tr.raw()
		require.Len(t, raw, 2)
		require.Equal(t, tlv.Hex("B0 54 00 00 FF 0A0B0C0D 00000000 F6"), raw[0][:14])
		require.Len(t, raw[0], 5+255)
		require.Equal(t, tlv.Hex("B0 54 00 00 0A 0A0B0C0D 000000F6 01 5A"), raw[1])
	})

	t.Run("Empty", func(t *testing.T) {
		card, tr := newScripted(t)

		n, err := card.WriteObject(1, 0, nil)
		require.NoError(t, err)
		require.Zero(t, n)
		require.Empty(t, tr.sent)
	})

	t.Run("AbortsOnFailure", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C0F))

		n, err := card.WriteObject(1, 0, make([]byte, 500))
		require.ErrorIs(t, err, ErrInvalidArguments)
		require.Zero(t, n)
		require.Len(t, tr.sent, 1)
	})
}

func TestCreateObject(t *testing.T) {
	acl := ACL{Read: ACLNone, Write: ACLIdentity, Delete: ACLIdentity}

	t.Run("Success", func(t *testing.T) {
		card, tr := newScripted(t, ok(""))

		n, err := card.CreateObject(0x11223344, 500, acl)
		require.NoError(t, err)
		require.Equal(t, uint32(500), n)
		require.Equal(t, tlv.Hex("B0 5A 00 00 0E 11223344 000001F4 0000 0002 0002"), tr.raw()[0])
	})

	t.Run("ExistsIsNotZeroFilled", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C08))

		_, err := card.CreateObject(1, 500, acl)
		require.ErrorIs(t, err, ErrFileAlreadyExists)
		require.Len(t, tr.sent, 1)
	})

	t.Run("FailureZeroFillsDeclaredRange", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C01), ok(""), ok(""), ok(""))

		_, err := card.CreateObject(7, 500, acl)
		require.ErrorIs(t, err, ErrMemoryFailure)
		require.Equal(t, []byte{0x5A, 0x54, 0x54, 0x54}, tr.ins())

		covered := 0
		for i, cmd := range tr.sent[1:] {
			id := getUint32(cmd.Data[0:4])
			off := getUint32(cmd.Data[4:8])
			n := int(cmd.Data[8])
			require.Equal(t, uint32(7), id)
			require.Equal(t, uint32(i*MaxWriteChunk), off)
			require.Equal(t, make([]byte, n), cmd.Data[9:])
			covered += n
		}
		require.Equal(t, 500, covered)
	})

	t.Run("ZeroFillFailureKeepsOriginalError", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C06), sw(0x9C07))

		_, err := card.CreateObject(7, 500, acl)
		require.ErrorIs(t, err, ErrNotAllowed)
		require.Len(t, tr.sent, 2)
	})

	t.Run("ZeroSizeFailure", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C01))

		_, err := card.CreateObject(7, 0, acl)
		require.ErrorIs(t, err, ErrMemoryFailure)
		require.Len(t, tr.sent, 1)
	})

	t.Run("TransportFailureSkipsZeroFill", func(t *testing.T) {
		card, tr := newScripted(t, transportErr(errors.New("gone")))

		_, err := card.CreateObject(7, 500, acl)
		require.ErrorIs(t, err, ErrTransport)
		require.Len(t, tr.sent, 1)
	})
}

func TestCreateObjectReplacing(t *testing.T) {
	acl := ACL{Read: ACLIdentity, Write: ACLIdentity, Delete: ACLIdentity}

	t.Run("Replaces", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C08), ok(""), ok(""))

		n, err := card.CreateObjectReplacing(9, 20, acl)
		require.NoError(t, err)
		require.Equal(t, uint32(20), n)
		require.Equal(t, []byte{0x5A, 0x52, 0x5A}, tr.ins())
	})

	t.Run("RetriesOnce", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C08), ok(""), sw(0x9C08))

		_, err := card.CreateObjectReplacing(9, 20, acl)
		require.ErrorIs(t, err, ErrFileAlreadyExists)
		require.Len(t, tr.sent, 3)
	})

	t.Run("DeleteFails", func(t *testing.T) {
		card, tr := newScripted(t, sw(0x9C08), sw(0x9C06))

		_, err := card.CreateObjectReplacing(9, 20, acl)
		require.ErrorIs(t, err, ErrNotAllowed)
		require.Len(t, tr.sent, 2)
	})
}

func TestDeleteObject(t *testing.T) {
	card, tr := newScripted(t, ok(""), ok(""), sw(0x9C07))

	require.NoError(t, card.DeleteObject(0xCAFEBABE, false))
	require.NoError(t, card.DeleteObject(0xCAFEBABE, true))
	require.ErrorIs(t, card.DeleteObject(0xCAFEBABE, false), ErrFileNotFound)

	want := [][]byte{
		tlv.Hex("B0 52 00 00 04 CAFEBABE"),
		tlv.Hex("B0 52 00 01 04 CAFEBABE"),
		tlv.Hex("B0 52 00 00 04 CAFEBABE"),
	}
	if diff := cmp.Diff(want, tr.raw()); diff != "" {
		t.Errorf("Sent mismatch (-want +got):\n%s", diff)
	}
}
