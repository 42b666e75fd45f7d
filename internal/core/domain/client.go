package domain

import "time"

// Client is a customer record owned by one branch. Each branch keeps its own
// data in a dedicated sub-document.
type Client struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ContactName string     `json:"contact_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Branch      Branch     `json:"branch"`
	AdminData   *AdminData `json:"admin_data,omitempty"`
	WebData     *WebData   `json:"web_data,omitempty"`
	CyberData   *CyberData `json:"cyber_data,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AdminData holds commercial details visible to the admin branch only.
type AdminData struct {
	BillingContact string  `json:"billing_contact,omitempty"`
	ContractValue  float64 `json:"contract_value,omitempty"`
	PaymentTerms   string  `json:"payment_terms,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

type WebData struct {
	Domain          string   `json:"domain,omitempty"`
	HostingProvider string   `json:"hosting_provider,omitempty"`
	Stack           []string `json:"stack,omitempty"`
}

type CyberData struct {
	RiskLevel      string     `json:"risk_level,omitempty"`
	Scope          []string   `json:"scope,omitempty"`
	LastAssessment *time.Time `json:"last_assessment,omitempty"`
}

// ClientSection maps a client sub-document to the branch whose silo rules
// guard it.
type ClientSection string

const (
	SectionAdmin ClientSection = "admin_data"
	SectionWeb   ClientSection = "web_data"
	SectionCyber ClientSection = "cyber_data"
)

// Branch returns the branch owning the section.
func (s ClientSection) Branch() Branch {
	switch s {
	case SectionAdmin:
		return BranchAdmin
	case SectionWeb:
		return BranchWebDev
	case SectionCyber:
		return BranchCyberSecurity
	}
	return ""
}

// ClientPatch is a partial update. Nil fields are left untouched.
type ClientPatch struct {
	Name        *string
	ContactName *string
	Email       *string
	AdminData   *AdminData
	WebData     *WebData
	CyberData   *CyberData
}

// Sections lists the sub-documents the patch writes to.
func (p ClientPatch) Sections() []ClientSection {
	var out []ClientSection
	if p.AdminData != nil {
		out = append(out, SectionAdmin)
	}
	if p.WebData != nil {
		out = append(out, SectionWeb)
	}
	if p.CyberData != nil {
		out = append(out, SectionCyber)
	}
	return out
}

func (p ClientPatch) Empty() bool {
	return p.Name == nil && p.ContactName == nil && p.Email == nil && len(p.Sections()) == 0
}

// BranchFilter narrows a listing to records whose branch is in Branches.
// An empty slice matches nothing.
type BranchFilter struct {
	Branches []Branch
	Limit    int64
	Offset   int64
}
