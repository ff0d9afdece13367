// Package domain models hazard events and their VTEC coding for a
// meteorological warning service.
//
// # Hazard Types
//
// A hazard type is the dotted join of a phenomenon code, a significance code,
// and an optional subtype:
//
//	FF.W            flash flood warning
//	FF.A            flash flood watch
//	FA.W            areal flood warning
//	FA.Y            areal flood advisory
//	FL.W            river flood warning (point hazard, keyed by gauge)
//	FL.Y            river flood advisory
//	HY.S            hydrologic statement
//
// Significance codes: W warning, A watch, Y advisory, S statement.
//
// # VTEC
//
// Every coded record renders to a fixed-width envelope:
//
//	/O.NEW.KTBW.FL.W.0001.130117T0000Z-130118T0300Z/
//
// product class (O operational, T test, E experimental), action, issuing
// office, phenomenon, significance, four-digit event tracking number, start
// and end time in YYMMDDTHHMMZ UTC. The all-zero time 000000T0000Z means
// "until further notice" in end position and "start unchanged from the prior
// record" in start position.
//
// Point hazards carry a second line with gauge id, flood severity, immediate
// cause, rise-above/crest/fall-below times, and flood-of-record code:
//
//	/KSCM6.1.ER.130117T0000Z.130117T0000Z.130117T1200Z.NO/
//
// # Time Convention
//
// All persisted time fields are integer milliseconds since the Unix epoch,
// UTC. time.Time values appear only at package boundaries (wire encoding,
// configuration, logging). The helpers [ToTime] and [ToMillis] convert.
//
// # Event Tracking Numbers
//
// ETNs are integers >= 1, allocated per (office, phenomenon, significance,
// calendar year of issuance), monotonically increasing. An etn whose latest
// action is CAN, EXP, or UPG is closed and never reused.
package domain
