package product

import "github.com/couchcryptid/hazard-services/internal/domain"

// Issuance is one issued product ready for dissemination: the legacy text
// plus enough metadata for downstream consumers to route without parsing it.
type Issuance struct {
	ProductID string      `json:"product_id"`
	SiteID    string      `json:"site_id"`
	Mode      domain.Mode `json:"mode"`
	IssueTime int64       `json:"issue_time"`
	ETN       int         `json:"etn,omitempty"`
	Text      string      `json:"text"`
	Parts     []Part      `json:"parts"`
	Segments  int         `json:"segments"`
	UGCs      []string    `json:"ugcs,omitempty"`
}

// NewIssuance renders p and wraps it for dissemination.
func NewIssuance(p *Product, siteID string, mode domain.Mode, issueTime int64) Issuance {
	text := NewRenderer(siteID, issueTime).Render(p)

	seen := make(map[string]bool)
	var ugcs []string
	for i := range p.Segments {
		for _, code := range p.Segments[i].UGCs {
			if !seen[code] {
				seen[code] = true
				ugcs = append(ugcs, code)
			}
		}
	}

	return Issuance{
		ProductID: p.ProductID,
		SiteID:    siteID,
		Mode:      mode,
		IssueTime: issueTime,
		ETN:       p.ETN,
		Text:      text,
		Parts:     p.Parts,
		Segments:  len(p.Segments),
		UGCs:      ugcs,
	}
}
