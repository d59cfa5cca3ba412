package congress

// Response shapes for the congress.gov v3 endpoints this client consumes.
// Decoding is permissive: unknown fields are ignored and optional fields are
// modeled explicitly; absence of a field means the sub-endpoint contributed
// nothing, not a hard error.

// ListedBill is one entry of the /bill/{congress}/{billType} list response.
// Number is a string upstream; some bill types carry non-numeric
// identifiers, which the ingester skips.
type ListedBill struct {
	Number     string `json:"number"`
	UpdateDate string `json:"updateDate"`
}

// Pagination is the upstream paging envelope.
type Pagination struct {
	Count int    `json:"count"`
	Next  string `json:"next,omitempty"`
}

// BillList is the decoded list page.
type BillList struct {
	Bills      []ListedBill `json:"bills"`
	Pagination Pagination   `json:"pagination"`
}

// Sponsor is the first-listed sponsor of a bill.
type Sponsor struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Party     string `json:"party"`
	State     string `json:"state"`
}

// BillDetail is the /bill/{congress}/{billType}/{n} payload.
type BillDetail struct {
	Title          string    `json:"title"`
	IntroducedDate string    `json:"introducedDate"`
	Sponsors       []Sponsor `json:"sponsors"`
}

// SourceSystem identifies the chamber system that recorded an action.
type SourceSystem struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ActionItem is one entry of the /actions sub-endpoint.
type ActionItem struct {
	ActionCode   string       `json:"actionCode,omitempty"`
	ActionDate   string       `json:"actionDate"`
	SourceSystem SourceSystem `json:"sourceSystem"`
	Text         string       `json:"text"`
	Type         string       `json:"type,omitempty"`
}

// PolicyArea is the single policy area of the /subjects sub-endpoint.
type PolicyArea struct {
	Name       string `json:"name"`
	UpdateDate string `json:"updateDate"`
}

// SummaryItem is one entry of the /summaries sub-endpoint.
type SummaryItem struct {
	ActionDate  string `json:"actionDate"`
	ActionDesc  string `json:"actionDesc"`
	Text        string `json:"text"`
	UpdateDate  string `json:"updateDate"`
	VersionCode string `json:"versionCode"`
}

// TextFormat is one downloadable rendition of a text version.
type TextFormat struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// TextVersion is one entry of the /text sub-endpoint. Upstream orders the
// list oldest first, latest last.
type TextVersion struct {
	Date    string       `json:"date"`
	Type    string       `json:"type"`
	Formats []TextFormat `json:"formats"`
}

// Format type labels used to pick URLs out of a text version.
const (
	FormatPDF  = "PDF"
	FormatText = "Formatted Text"
)

// URLFor returns the URL of the named format, or "" when absent.
func (v TextVersion) URLFor(formatType string) string {
	for _, f := range v.Formats {
		if f.Type == formatType {
			return f.URL
		}
	}
	return ""
}
