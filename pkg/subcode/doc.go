// Package subcode issues and validates subscription codes: 32-character
// identifiers made of 16 letters and 16 digits in random order, printed on a
// member's card or rendered as a QR code and later presented at a kiosk.
//
// # Architecture
//
//   • Generator draws three independent batches of bytes from a
//     cryptographically secure source (crypto/rand by default): one batch
//     selects the letters, one the digits, and one drives a Fisher–Yates
//     shuffle of the combined sequence. Bytes are never shared between the
//     batches.
//   • GenerateUnique repeats generation against a caller-supplied existence
//     check (normally backed by the subscription store) and gives up after a
//     fixed number of attempts with ErrExhaustedRetries. With a keyspace this
//     large a collision streak means something is broken, so the error is
//     logged at error level and should alert.
//   • ValidateFormat enforces the letter/digit balance every issued code has.
//     WellFormed is the weaker structural gate (32 ASCII letters or digits)
//     applied to anything typed or scanned before it reaches a store.
//
// # Usage
//
//	code, err := subcode.GenerateUnique(ctx, func(ctx context.Context, c string) (bool, error) {
//		return store.Exists(ctx, c)
//	})
//	if err != nil {
//		// errors.Is(err, subcode.ErrExhaustedRetries) → page someone
//	}
//
//	fmt.Println(subcode.FormatForDisplay(code)) // "aB3d-91Kx-..."
//
// Codes typed back in from the display form go through Normalize first:
//
//	code := subcode.Normalize(" aB3d-91Kx-... ")
package subcode
