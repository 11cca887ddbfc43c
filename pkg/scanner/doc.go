// Package scanner tells a hardware barcode scanner apart from a person typing
// on the same keyboard.
//
// USB and Bluetooth scanners usually present themselves as keyboards. They
// "type" a whole code in a fast, evenly paced burst followed by Enter. A
// human pressing keys on the same terminal produces the same events, only
// slower and less regular. A Classifier watches the timing of those events
// and reports a decoded string only when the burst looks machine paced.
//
// # Architecture
//
// A Classifier is a two-state machine (idle and buffering). Printable keys
// are appended to a buffer together with their timestamps. A terminator
// (Enter) ends the burst and the buffer is decoded only when all of these
// hold:
//
//   - at least Config.MinLength characters were buffered
//   - no gap between consecutive characters exceeds Config.MaxGap
//   - first to last character spans less than Config.MaxBurst
//   - the optional validator (WithValidator) accepts the string
//
// Anything else is discarded silently. Partial or low-confidence input is
// never reported. A buffer that sees no key for Config.Inactivity is
// discarded too. The inactivity rule is applied both by a timer and by the
// event timestamps, so replayed or synthetic streams behave like live ones.
//
// Keys held with Ctrl, Alt or Meta and keys with no printable character
// (Shift, arrows, function keys) are ignored and do not reset the buffer.
//
// Events come from any Source. Run pumps a Source into a Classifier until the
// context ends. Feed may also be called directly, for example from an HTTP
// handler relaying browser key events.
//
// # Usage
//
//	c := scanner.New(func(code string) {
//		ledger.CheckIn(ctx, code)
//	},
//		scanner.WithConfig(scanner.DefaultConfig()),
//		scanner.WithValidator(subcode.ValidateFormat),
//	)
//	defer c.Close()
//
//	src := make(scanner.ChanSource)
//	go scanner.Run(ctx, src, c)
//
// # Profiles
//
// Scanner models differ in how fast they type. Named threshold sets can be
// kept in a YAML file and selected at start-up:
//
//	profiles:
//	  honeywell-1450g:
//	    max_gap: 60ms
//	    max_burst: 500ms
//	  bluetooth-slow:
//	    max_gap: 220ms
//	    inactivity: 900ms
//
//	p, err := scanner.LoadProfileFile("scanners.yaml", "bluetooth-slow")
//	cfg := p.Apply(scanner.DefaultConfig())
package scanner
