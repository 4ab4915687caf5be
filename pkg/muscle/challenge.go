package muscle

// GetChallenge returns length random bytes from the card, mixing in seed.
//
// Below 255 bytes the output comes back inline behind a 2-byte header. From
// 255 bytes on the card writes it to OutputObject, which is read from offset 2
// and then deleted.
func (c *Card) GetChallenge(length int, seed []byte) ([]byte, error) {
	const op = "get challenge"

	if length <= 0 || length > 0xFFFF {
		return nil, invalidArgs(op, "length %d out of range 1..65535", length)
	}
	if len(seed) > MaxChallengeSeed {
		return nil, invalidArgs(op, "seed of %d bytes (max %d)", len(seed), MaxChallengeSeed)
	}

	body := encodeChallengeRequest(length, seed)

	if length < inlineChallengeLimit {
		resp, err := c.transmit(op, insGetChallenge, 0x00, challengeInline, body, length+2)
		if err != nil {
			return nil, err
		}
		if err := c.classify(op, challengeTable, resp.Status); err != nil {
			return nil, err
		}
		if len(resp.Data) != length+2 {
			return nil, unknownData(op, "expected %d bytes, got %d", length+2, len(resp.Data))
		}
		return resp.Data[2:], nil
	}

	resp, err := c.transmit(op, insGetChallenge, 0x00, challengeObject, body, 0)
	if err != nil {
		return nil, err
	}
	if err := c.classify(op, challengeTable, resp.Status); err != nil {
		return nil, err
	}

	out, err := c.ReadObject(OutputObject, 2, length)
	if err != nil {
		return nil, err
	}
	if err := c.DeleteObject(OutputObject, false); err != nil {
		return nil, err
	}
	return out, nil
}
