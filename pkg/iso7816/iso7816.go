/*
Package iso7816 implements the APDU (Application Protocol Data Unit) layer used to talk
to a contactless card through a PC/SC reader, according to ISO/IEC 7816-3/-4 and the
PC/SC Part 3 pseudo-APDU conventions.

It provides Command and Response structures, Status Word (SW) analysis, a Client that
records every exchange as a Trace, and the proprietary class used for reader-addressed
commands.

# Fundamentals

The communication with a card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card (or the reader on its behalf) returns a Response APDU (Optional Body + Trailer SW1/SW2).

# PC/SC pseudo-APDUs

Storage cards such as MIFARE Classic do not speak ISO 7816-4. PC/SC compliant readers
expose them through pseudo-APDUs carrying CLA 0xFF (see PCSCClass), which ISO reserves
and which the reader intercepts:

  - FF 82: LOAD KEYS into the reader's volatile key slot.
  - FF 86: GENERAL AUTHENTICATE a block with a loaded key.
  - FF B0: READ BINARY (block number in P2).
  - FF D6: UPDATE BINARY (block number in P2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x6300: PC/SC "operation failed" (wrong key, authentication refused).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).

# Usage Example

	client := iso7816.NewClient(card)
	cmd := iso7816.NewCommandAPDU(iso7816.PCSCClass, iso7816.MustInstruction(iso7816.INS_READ_BINARY), 0x00, 4, nil, 16)

	trace, err := client.Send(cmd)
	if err != nil {
	    log.Fatal(err)
	}

	if trace.Status() == iso7816.SW_NO_ERROR {
	    fmt.Printf("Block 4: %X\n", trace.Last().Response.Data)
	}
*/
package iso7816
