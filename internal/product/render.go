package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/hazard-services/internal/domain"
	"github.com/couchcryptid/hazard-services/internal/ugc"
	"github.com/couchcryptid/hazard-services/internal/vtec"
)

// Renderer walks a parts plan and emits the legacy text skeleton. Only the
// externally constrained parts produce wire bytes: the UGC header, VTEC and
// hydrologic lines, the segment terminator, and the header block. Prose
// parts render as uppercase placeholders a downstream formatter replaces.
type Renderer struct {
	Office    string
	IssueTime int64
	// Purge bounds the UGC expiration when no record end time applies.
	Purge time.Duration
}

// NewRenderer returns a renderer with the one-hour default purge.
func NewRenderer(office string, issueTime int64) *Renderer {
	return &Renderer{Office: office, IssueTime: issueTime, Purge: time.Hour}
}

// Render emits the full product text.
func (r *Renderer) Render(p *Product) string {
	var b strings.Builder
	r.renderParts(&b, p, nil, p.Parts)
	return b.String()
}

func (r *Renderer) renderParts(b *strings.Builder, p *Product, seg *Segment, plan []Part) {
	for _, part := range plan {
		switch part.Name {
		case "segments":
			for i, sub := range part.Subs {
				r.renderParts(b, p, &p.Segments[i], sub)
			}
		case "sections":
			for _, sub := range part.Subs {
				r.renderParts(b, p, seg, sub)
			}
		default:
			r.renderLeaf(b, p, seg, part.Name)
		}
	}
}

func (r *Renderer) renderLeaf(b *strings.Builder, p *Product, seg *Segment, name string) {
	switch name {
	case "CR":
		b.WriteString("\n")
	case "wmoHeader":
		fmt.Fprintf(b, "%s %s %s\n", wmoID(p), r.Office, ddhhmm(r.IssueTime))
		fmt.Fprintf(b, "%s%s\n", p.ProductID, siteID(r.Office))
	case "productHeader":
		fmt.Fprintf(b, "%s\n", strings.ToUpper(p.ProductName))
		fmt.Fprintf(b, "National Weather Service %s\n", siteID(r.Office))
	case "ugcHeader":
		if seg != nil {
			b.WriteString(ugc.Header(seg.UGCs, r.segmentExpiry(seg)))
			b.WriteString("\n")
		}
	case "vtecRecords":
		if seg != nil {
			for _, rec := range seg.Records {
				b.WriteString(vtec.EncodeLine(rec))
				b.WriteString("\n")
				if rec.PointID != "" {
					b.WriteString(vtec.EncodeHydroLine(rec))
					b.WriteString("\n")
				}
			}
		}
	case "endSegment":
		b.WriteString("$$\n\n")
	case "setUp_segment", "endSection":
		// structural markers with no wire bytes
	case "initials":
		b.WriteString("\n")
	default:
		fmt.Fprintf(b, "|* %s *|\n", strings.ToUpper(name))
	}
}

// segmentExpiry picks the UGC purge time: the earliest live record end, or
// issuance plus the default purge for until-further-notice segments.
func (r *Renderer) segmentExpiry(seg *Segment) time.Time {
	var earliest int64
	for _, rec := range seg.Records {
		if rec.Action.Terminal() || rec.EndTime == 0 {
			continue
		}
		if earliest == 0 || rec.EndTime < earliest {
			earliest = rec.EndTime
		}
	}
	if earliest == 0 {
		earliest = r.IssueTime + r.Purge.Milliseconds()
	}
	return domain.ToTime(earliest)
}

var wmoIDs = map[string]string{
	"FFW": "WGUS52", "FFS": "WGUS52", "FFA": "WGUS62",
	"FLW": "WGUS42", "FLS": "WGUS82", "ESF": "FGUS72",
	"SIGMET": "WSUS31", "AIRMET": "WAUS41",
}

func wmoID(p *Product) string {
	if id, ok := wmoIDs[p.ProductID]; ok {
		return id
	}
	return "WGUS42"
}

// siteID strips the leading K from a CONUS office identifier.
func siteID(office string) string {
	if len(office) == 4 && office[0] == 'K' {
		return office[1:]
	}
	return office
}

func ddhhmm(ms int64) string {
	return domain.ToTime(ms).Format("021504")
}
