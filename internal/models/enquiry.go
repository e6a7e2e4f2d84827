package models

// EnquiryResult is the server's answer to an enquiry submission. Duplicate means the
// same contact already has an open enquiry for the listing.
type EnquiryResult struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

type EnquiryStatus string

const (
	EnquiryPending   EnquiryStatus = "pending"
	EnquiryContacted EnquiryStatus = "contacted"
	EnquiryClosed    EnquiryStatus = "closed"
	EnquiryCancelled EnquiryStatus = "cancelled"
)

// Enquiry is a buyer's recorded interest in a listing, as listed under "my enquiries".
type Enquiry struct {
	ID           ID            `json:"id"`
	LandID       ID            `json:"land_id"`
	Land         *Listing      `json:"land,omitempty"`
	EnquiryType  string        `json:"enquiry_type"`
	ContactName  string        `json:"contact_name,omitempty"`
	ContactPhone string        `json:"contact_phone"`
	ContactEmail string        `json:"contact_email,omitempty"`
	Message      string        `json:"message,omitempty"`
	Budget       *Amount       `json:"budget,omitempty"`
	Status       EnquiryStatus `json:"status"`
	CreatedAt    string        `json:"created_at,omitempty"`
}

// Cancellable reports whether the buyer may still withdraw the enquiry.
func (e *Enquiry) Cancellable() bool {
	return e.Status == EnquiryPending
}

// Title falls back to a generic label when the listing was not embedded.
func (e *Enquiry) Title() string {
	if e.Land != nil && e.Land.Title != "" {
		return e.Land.Title
	}
	return "Land Property"
}
