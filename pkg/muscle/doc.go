/*
Package muscle drives the MUSCLE card applet: a small object store, PIN
verification, and on-card RSA keys with a streaming cipher.

Every operation is a method of Card, which sends commands through a Transport
(usually an *iso7816.Client over a PC/SC connection or the musclesim emulator).

# Object Store

Objects are addressed by a 32-bit ObjectID and carry three opaque ACL words.
Transfers are split into pieces the applet accepts in one command:

	MaxReadChunk  = 255  // data per read response
	MaxWriteChunk = 246  // data per update command, after id, offset and length

KeyStagingObject and OutputObject are reserved for key import, key extraction
and large challenges.

# Errors

Failures are *Error values. Compare kinds with errors.Is:

	if errors.Is(err, muscle.ErrFileNotFound) { ... }

	if tries, ok := muscle.RemainingTries(err); ok && tries >= 0 {
	    log.Printf("%d attempts left", tries)
	}

# Concurrency

A Card holds no lock. One command is in flight at a time and callers
serialise access to a given card.
*/
package muscle
