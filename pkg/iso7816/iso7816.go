/*
Package iso7816 implements the transport-level building blocks for talking to smart cards according to ISO/IEC 7816-3 and 7816-4.

It covers Command and Response APDU encoding (short and extended lengths), CLA and INS validation, Status Word analysis, and a Client that drives a raw Transmitter (a PC/SC card, an emulator) while absorbing the T=0 follow-up exchanges.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

There is no pipelining: one command is in flight at a time, and the Client performs no locking.

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - 0x63CX: Counter, usually the remaining verification attempts.
  - Other: Various error conditions.

Applets are free to define their own status words outside these ranges. Callers classify them first and fall back to the ISO meaning.

# Usage Example

	card := ... // anything with Transmit([]byte) ([]byte, error)
	client := iso7816.NewClient(card)

	trace, err := client.Send(iso7816.SelectByAID(iso7816.MustClass(0x00), aid))
	if err != nil {
	    log.Fatal(err)
	}

	if !trace.IsSuccess() {
	    log.Printf("select failed: %s", trace.Last().Response.Status.Verbose())
	}

	fmt.Println(trace.Describe())
*/
package iso7816
