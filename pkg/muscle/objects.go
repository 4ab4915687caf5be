package muscle

import (
	"errors"
	"math"
)

// OBJECT STORE:
// Objects are flat byte arrays addressed by a 32-bit id. Reads are cut in
// MaxReadChunk pieces, updates in MaxWriteChunk pieces because an update
// spends 9 bytes of the same body on id, offset and length. Pieces go out
// strictly left to right and the first failure aborts the whole call.

// ListObjects returns the descriptor under cursor (ListReset or ListNext),
// or nil once the card reports the end of the list.
func (c *Card) ListObjects(cursor byte) (*ObjectInfo, error) {
	const op = "list objects"

	resp, err := c.transmit(op, insListObjects, cursor, 0x00, nil, objectDescriptorLen)
	if err != nil {
		return nil, err
	}
	if resp.Status == SWEndOfList {
		return nil, nil
	}
	if err := c.classify(op, nil, resp.Status); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	info, err := decodeObjectInfo(resp.Data)
	if err != nil {
		return nil, unknownData(op, "descriptor: %w", err)
	}
	return &info, nil
}

// Objects enumerates the whole store from the first descriptor.
func (c *Card) Objects() ([]ObjectInfo, error) {
	var objects []ObjectInfo

	cursor := ListReset
	for {
		info, err := c.ListObjects(cursor)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return objects, nil
		}
		objects = append(objects, *info)
		cursor = ListNext
	}
}

// ReadObject reads length bytes at offset. Either every byte is returned or
// an error, never a short result.
func (c *Card) ReadObject(id ObjectID, offset uint32, length int) ([]byte, error) {
	const op = "read object"

	if err := checkRange(op, offset, length); err != nil {
		return nil, err
	}

	out := make([]byte, 0, length)
	for done := 0; done < length; {
		n := min(length-done, MaxReadChunk)
		chunk, err := c.readChunk(id, offset+uint32(done), n)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		done += n
	}
	return out, nil
}

func (c *Card) readChunk(id ObjectID, offset uint32, n int) ([]byte, error) {
	const op = "read object"

	resp, err := c.transmit(op, insReadObject, 0x00, 0x00, encodeChunkHeader(id, offset, n), n)
	if err != nil {
		return nil, err
	}
	if err := c.classify(op, readTable, resp.Status); err != nil {
		return nil, err
	}
	if len(resp.Data) != n {
		return nil, unknownData(op, "asked %d bytes at offset %d, got %d", n, offset, len(resp.Data))
	}
	return resp.Data, nil
}

// WriteObject writes data at offset and returns len(data) on success.
func (c *Card) WriteObject(id ObjectID, offset uint32, data []byte) (int, error) {
	const op = "update object"

	if err := checkRange(op, offset, len(data)); err != nil {
		return 0, err
	}

	for done := 0; done < len(data); {
		n := min(len(data)-done, MaxWriteChunk)
		if err := c.writeChunk(id, offset+uint32(done), data[done:done+n]); err != nil {
			return 0, err
		}
		done += n
	}
	return len(data), nil
}

func (c *Card) writeChunk(id ObjectID, offset uint32, chunk []byte) error {
	const op = "update object"

	body := append(encodeChunkHeader(id, offset, len(chunk)), chunk...)
	resp, err := c.transmit(op, insUpdateObject, 0x00, 0x00, body, 0)
	if err != nil {
		return err
	}
	return c.classify(op, updateTable, resp.Status)
}

// CreateObject allocates an object of size bytes and returns that size.
//
// A card may keep the space after reporting a failure. Unless the failure is
// FileAlreadyExists, the declared range is overwritten with zeros before the
// original error is returned; the zero-fill outcome is discarded.
func (c *Card) CreateObject(id ObjectID, size uint32, acl ACL) (uint32, error) {
	const op = "create object"

	body := appendUint32(appendUint32(make([]byte, 0, objectDescriptorLen), uint32(id)), size)
	body = appendACL(body, acl)

	resp, err := c.transmit(op, insCreateObject, 0x00, 0x00, body, 0)
	if err != nil {
		return 0, err
	}

	cerr := c.classify(op, createTable, resp.Status)
	if cerr == nil {
		return size, nil
	}
	if errors.Is(cerr, ErrFileAlreadyExists) {
		return 0, cerr
	}

	c.log.Debug("zero-filling after failed create", "id", id, "size", size, "err", cerr)
	if zerr := c.zeroFill(id, size); zerr != nil {
		c.log.Debug("zero-fill aborted", "id", id, "err", zerr)
	}
	return 0, cerr
}

// CreateObjectReplacing creates id, deleting and recreating it exactly once
// when it already exists.
func (c *Card) CreateObjectReplacing(id ObjectID, size uint32, acl ACL) (uint32, error) {
	n, err := c.CreateObject(id, size, acl)
	if !errors.Is(err, ErrFileAlreadyExists) {
		return n, err
	}

	if err := c.DeleteObject(id, false); err != nil {
		return 0, err
	}
	return c.CreateObject(id, size, acl)
}

// DeleteObject removes id, asking the applet to clear it first when zero is set.
func (c *Card) DeleteObject(id ObjectID, zero bool) error {
	const op = "delete object"

	var p2 byte
	if zero {
		p2 = 0x01
	}

	resp, err := c.transmit(op, insDeleteObject, 0x00, p2, appendUint32(nil, uint32(id)), 0)
	if err != nil {
		return err
	}
	return c.classify(op, deleteTable, resp.Status)
}

// zeroFill overwrites [0, size) of id, stopping at the first failed piece.
func (c *Card) zeroFill(id ObjectID, size uint32) error {
	zeros := make([]byte, MaxWriteChunk)
	for done := uint32(0); done < size; {
		n := min(size-done, MaxWriteChunk)
		if err := c.writeChunk(id, done, zeros[:n]); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func checkRange(op string, offset uint32, length int) error {
	if length < 0 {
		return invalidArgs(op, "negative length %d", length)
	}
	if uint64(offset)+uint64(length) > math.MaxUint32 {
		return invalidArgs(op, "range %d+%d exceeds object address space", offset, length)
	}
	return nil
}
