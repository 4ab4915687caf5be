package musclesim

import (
	"encoding/binary"
	"slices"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

type acl struct {
	read, write, remove uint16
}

type object struct {
	data []byte
	acl  acl
}

const (
	aclAlways uint16 = 0x0000
	aclNever  uint16 = 0xFFFF
)

// allows applies the applet ACL rule: 0000 is open, FFFF is closed, any other
// mask needs one of its identities to be logged in.
func (a *Applet) allows(mask uint16) bool {
	switch mask {
	case aclAlways:
		return true
	case aclNever:
		return false
	}
	return mask&a.loggedIn != 0
}

func (a *Applet) used() int {
	n := 0
	for _, o := range a.objects {
		n += len(o.data)
	}
	return n
}

// Object returns a copy of the content of id.
func (a *Applet) Object(id uint32) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	o, ok := a.objects[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(o.data), true
}

// PutObject stores data under id with open ACLs, replacing any previous object.
func (a *Applet) PutObject(id uint32, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[id] = &object{data: slices.Clone(data)}
}

// replaceObject is used by commands that write their output to a reserved object.
func (a *Applet) replaceObject(id uint32, data []byte) bool {
	delete(a.objects, id)
	if a.used()+len(data) > a.memory {
		return false
	}
	a.objects[id] = &object{data: data}
	return true
}

func (a *Applet) listObjects(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	switch cmd.P1 {
	case 0x00:
		a.listing = a.listing[:0]
		for id := range a.objects {
			a.listing = append(a.listing, id)
		}
		slices.Sort(a.listing)
		a.cursor = 0
	case 0x01:
	default:
		return status(swInvalidParam)
	}

	for a.cursor < len(a.listing) {
		id := a.listing[a.cursor]
		a.cursor++

		o, ok := a.objects[id]
		if !ok {
			continue
		}
		b := binary.BigEndian.AppendUint32(nil, id)
		b = binary.BigEndian.AppendUint32(b, uint32(len(o.data)))
		b = binary.BigEndian.AppendUint16(b, o.acl.read)
		b = binary.BigEndian.AppendUint16(b, o.acl.write)
		b = binary.BigEndian.AppendUint16(b, o.acl.remove)
		return success(b)
	}

	if a.emptyEnd {
		return success(nil)
	}
	return status(swEndOfList)
}

// chunkRef decodes id ‖ offset ‖ length and checks it against the object.
func (a *Applet) chunkRef(data []byte) (*object, uint32, int, iso7816.StatusWord) {
	if len(data) < 9 {
		return nil, 0, 0, swInvalidParam
	}
	id := binary.BigEndian.Uint32(data[0:4])
	off := binary.BigEndian.Uint32(data[4:8])
	n := int(data[8])

	o, ok := a.objects[id]
	if !ok {
		return nil, 0, 0, swNotFound
	}
	if uint64(off)+uint64(n) > uint64(len(o.data)) {
		return nil, 0, 0, swInvalidParam
	}
	return o, off, n, swOK
}

func (a *Applet) readObject(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if len(cmd.Data) != 9 {
		return status(swInvalidParam)
	}
	o, off, n, sw := a.chunkRef(cmd.Data)
	if sw != swOK {
		return status(sw)
	}
	if !a.allows(o.acl.read) {
		return status(swUnauthorized)
	}
	return success(slices.Clone(o.data[off : int(off)+n]))
}

func (a *Applet) updateObject(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	o, off, n, sw := a.chunkRef(cmd.Data)
	if sw != swOK {
		return status(sw)
	}
	if len(cmd.Data) != 9+n {
		return status(swInvalidParam)
	}
	if !a.allows(o.acl.write) {
		return status(swUnauthorized)
	}
	copy(o.data[off:], cmd.Data[9:])
	return success(nil)
}

func (a *Applet) createObject(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	d := cmd.Data
	if len(d) != 14 {
		return status(swInvalidParam)
	}
	id := binary.BigEndian.Uint32(d[0:4])
	size := binary.BigEndian.Uint32(d[4:8])

	if id == outputID {
		return status(swUnauthorized)
	}
	if _, exists := a.objects[id]; exists {
		return status(swExists)
	}
	if uint64(a.used())+uint64(size) > uint64(a.memory) {
		return status(swNoMemory)
	}

	a.objects[id] = &object{
		data: make([]byte, size),
		acl: acl{
			read:   binary.BigEndian.Uint16(d[8:10]),
			write:  binary.BigEndian.Uint16(d[10:12]),
			remove: binary.BigEndian.Uint16(d[12:14]),
		},
	}
	return success(nil)
}

func (a *Applet) deleteObject(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if len(cmd.Data) != 4 || cmd.P2 > 0x01 {
		return status(swInvalidParam)
	}
	id := binary.BigEndian.Uint32(cmd.Data)

	o, ok := a.objects[id]
	if !ok {
		return status(swNotFound)
	}
	if !a.allows(o.acl.remove) {
		return status(swUnauthorized)
	}
	if cmd.P2 == 0x01 {
		clear(o.data)
	}
	delete(a.objects, id)
	return success(nil)
}
