package vtec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// zeroTime is the all-zero wire time: "until further notice" in end position,
// "start unchanged from the prior record" in start position.
const zeroTime = "000000T0000Z"

const wireTimeLayout = "060102T1504Z"

// EncodeTime renders epoch milliseconds as YYMMDDTHHMMZ, or the all-zero
// time for zero input.
func EncodeTime(ms int64) string {
	if ms == 0 {
		return zeroTime
	}
	return domain.ToTime(ms).Format(wireTimeLayout)
}

// DecodeTime parses a wire time back to epoch milliseconds; the all-zero
// time decodes to 0.
func DecodeTime(s string) (int64, error) {
	if s == zeroTime {
		return 0, nil
	}
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse vtec time %q: %w", s, err)
	}
	return domain.ToMillis(t), nil
}

// EncodeLine renders the primary VTEC line:
//
//	/O.NEW.KTBW.FL.W.0001.130117T0000Z-130118T0300Z/
//
// Once an event is underway, follow-up actions render the start field as the
// all-zero time: the start is fixed by the prior record and repeating it
// would invite mismatches.
func EncodeLine(r *domain.VTECRecord) string {
	start := r.StartTime
	if r.Action != domain.ActionNew && start != 0 && start <= r.IssueTime {
		start = 0
	}
	return fmt.Sprintf("/%s.%s.%s.%s.%s.%04d.%s-%s/",
		r.Mode.ProductClass(), r.Action, r.Office,
		r.Phenomenon, r.Significance, r.ETN,
		EncodeTime(start), EncodeTime(r.EndTime))
}

// EncodeHydroLine renders the hydrologic line that follows the coded line on
// point-hazard segments:
//
//	/KSCM6.1.ER.130117T0000Z.130117T0000Z.130117T1200Z.NO/
//
// Severity N/0/1/2/3, two-letter immediate cause, rise-above, crest, and
// fall-below times, flood-of-record code NO/NR/UU/OO. Missing fields render
// as 0 severity, UU cause, the all-zero time, and OO record.
func EncodeHydroLine(r *domain.VTECRecord) string {
	sev := r.FloodSeverity
	if sev == "" {
		sev = "0"
	}
	cause := r.ImmediateCause
	if cause == "" {
		cause = "UU"
	}
	rec := r.FloodRecord
	if rec == "" {
		rec = "OO"
	}
	return fmt.Sprintf("/%s.%s.%s.%s.%s.%s.%s/",
		r.PointID, sev, cause,
		EncodeTime(r.RiseAbove), EncodeTime(r.Crest), EncodeTime(r.FallBelow), rec)
}

var lineRe = regexp.MustCompile(
	`^/([OTE])\.([A-Z]{3})\.([A-Z0-9]{4})\.([A-Z]{2})\.([WAYS])\.(\d{4})\.(\d{6}T\d{4}Z)-(\d{6}T\d{4}Z)/$`)

// DecodeLine parses a primary VTEC line into a record. Only the fields
// present on the wire are populated.
func DecodeLine(line string) (*domain.VTECRecord, error) {
	m := lineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil, fmt.Errorf("%w: malformed vtec line %q", domain.ErrInvalidInput, line)
	}

	start, err := DecodeTime(m[7])
	if err != nil {
		return nil, err
	}
	end, err := DecodeTime(m[8])
	if err != nil {
		return nil, err
	}
	etn, _ := strconv.Atoi(m[6])

	mode := domain.ModeOperational
	switch m[1] {
	case "T":
		mode = domain.ModeTest
	case "E":
		mode = domain.ModeExperimental
	}

	return &domain.VTECRecord{
		Mode:         mode,
		Action:       domain.Action(m[2]),
		Office:       m[3],
		Phenomenon:   m[4],
		Significance: m[5],
		ETN:          etn,
		StartTime:    start,
		EndTime:      end,
	}, nil
}
