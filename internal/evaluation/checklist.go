package evaluation

// Checklist is the fixed document checklist recorded during technical
// evaluation of a bid. Every field is a hard requirement; there is no
// partial-credit scoring.
type Checklist struct {
	ByelawCompliance       bool `db:"byelaw_compliance" json:"byelawCompliance"`
	PFChalan               bool `db:"pf_chalan" json:"pfChalan"`
	Declaration            bool `db:"declaration" json:"declaration"`
	MachineryProof         bool `db:"machinery_proof" json:"machineryProof"`
	SixtyPercentCredential bool `db:"sixty_percent_credential" json:"sixtyPercentCredential"`
	PriorWorkOrder         bool `db:"prior_work_order" json:"priorWorkOrder"`
	PaymentCertificate     bool `db:"payment_certificate" json:"paymentCertificate"`
	CompletionCertificate  bool `db:"completion_certificate" json:"completionCertificate"`
	ITReturnValid          bool `db:"it_return_valid" json:"itReturnValid"`
	GSTValid               bool `db:"gst_valid" json:"gstValid"`
	TradeLicenceValid      bool `db:"trade_licence_valid" json:"tradeLicenceValid"`
	ProfessionalTaxValid   bool `db:"professional_tax_valid" json:"professionalTaxValid"`
}

// checklistItem pairs a display name with an accessor so that Qualify and
// MissingItems cannot drift apart when the checklist changes.
type checklistItem struct {
	name string
	get  func(Checklist) bool
}

var checklistItems = []checklistItem{
	{"byelaw compliance", func(c Checklist) bool { return c.ByelawCompliance }},
	{"PF/EPF chalan", func(c Checklist) bool { return c.PFChalan }},
	{"declaration", func(c Checklist) bool { return c.Declaration }},
	{"machinery proof", func(c Checklist) bool { return c.MachineryProof }},
	{"60% amount credential", func(c Checklist) bool { return c.SixtyPercentCredential }},
	{"prior work order", func(c Checklist) bool { return c.PriorWorkOrder }},
	{"payment certificate", func(c Checklist) bool { return c.PaymentCertificate }},
	{"completion certificate", func(c Checklist) bool { return c.CompletionCertificate }},
	{"IT return validity", func(c Checklist) bool { return c.ITReturnValid }},
	{"GST validity", func(c Checklist) bool { return c.GSTValid }},
	{"trade licence validity", func(c Checklist) bool { return c.TradeLicenceValid }},
	{"professional tax validity", func(c Checklist) bool { return c.ProfessionalTaxValid }},
}

// Qualify reports whether the checklist passes technical evaluation: every
// document check must be true. Callers must persist the result alongside
// the checklist on every write; a stored qualify value that disagrees with
// its checklist is a correctness bug.
func Qualify(c Checklist) bool {
	for _, item := range checklistItems {
		if !item.get(c) {
			return false
		}
	}
	return true
}

// MissingItems returns the display names of the checks that failed, in
// checklist order. Empty for a qualifying checklist.
func MissingItems(c Checklist) []string {
	var missing []string
	for _, item := range checklistItems {
		if !item.get(c) {
			missing = append(missing, item.name)
		}
	}
	return missing
}
