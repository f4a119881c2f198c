package leads

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CustomerType classifies the visitor as a returning client or a new prospect.
type CustomerType string

const (
	CustomerUnknown  CustomerType = "unknown"
	CustomerExisting CustomerType = "existing"
	CustomerNew      CustomerType = "new"
)

// Requirements captures free-text preferences. Each field holds the raw
// utterance that last triggered it.
type Requirements struct {
	Purpose       string `json:"purpose,omitempty"`
	Budget        string `json:"budget,omitempty"`
	Possession    string `json:"possession,omitempty"`
	Configuration string `json:"configuration,omitempty"`
}

// Empty reports whether no requirement has been captured.
func (r Requirements) Empty() bool {
	return r.Purpose == "" && r.Budget == "" && r.Possession == "" && r.Configuration == ""
}

// Record is the lead aggregate accumulated over one conversation.
type Record struct {
	CustomerType          CustomerType `json:"customer_type"`
	Name                  string       `json:"name,omitempty"`
	Phone                 string       `json:"phone,omitempty"`
	PhoneVerified         bool         `json:"phone_verified"`
	OTPSent               bool         `json:"otp_sent"`
	InterestedProjectID   string       `json:"interested_project_id,omitempty"`
	InterestedProjectName string       `json:"interested_project_name,omitempty"`
	LeadSubmitted         bool         `json:"lead_submitted"`
	Remarks               []string     `json:"remarks,omitempty"`
	Requirements          Requirements `json:"requirements"`
}

// New returns an empty record.
func New() *Record {
	return &Record{CustomerType: CustomerUnknown}
}

// SetPhone stores phone. A different number clears verification state.
func (r *Record) SetPhone(phone string) bool {
	if phone == r.Phone {
		return false
	}
	r.Phone = phone
	r.PhoneVerified = false
	r.OTPSent = false
	return true
}

// MarkOTPSent records that a code was delivered for the current phone.
func (r *Record) MarkOTPSent() {
	if r.Phone != "" {
		r.OTPSent = true
	}
}

// MarkVerified sets PhoneVerified for the current phone.
func (r *Record) MarkVerified(phone string) error {
	if !r.OTPSent {
		return ErrOTPNotSent
	}
	if phone == "" || phone != r.Phone {
		return ErrPhoneMismatch
	}
	r.PhoneVerified = true
	return nil
}

// SetProject stores the project of interest.
func (r *Record) SetProject(id, name string) {
	r.InterestedProjectID = strings.TrimSpace(id)
	r.InterestedProjectName = strings.TrimSpace(name)
}

// HasProject reports whether a project of interest is known.
func (r *Record) HasProject() bool {
	return r.InterestedProjectID != ""
}

// AddRemark appends a non-empty remark.
func (r *Record) AddRemark(remark string) {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return
	}
	r.Remarks = append(r.Remarks, remark)
}

// ApplyRequirements overwrites every field set in update and reports
// whether anything changed.
func (r *Record) ApplyRequirements(update Requirements) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&r.Requirements.Purpose, update.Purpose)
	set(&r.Requirements.Budget, update.Budget)
	set(&r.Requirements.Possession, update.Possession)
	set(&r.Requirements.Configuration, update.Configuration)
	return changed
}

// ReadyForCRM reports whether the lead qualifies for CRM submission.
func (r *Record) ReadyForCRM() bool {
	return r.Name != "" &&
		r.Phone != "" &&
		r.PhoneVerified &&
		r.InterestedProjectID != "" &&
		!r.LeadSubmitted
}

// MarkSubmitted flips LeadSubmitted once.
func (r *Record) MarkSubmitted() error {
	if r.LeadSubmitted {
		return ErrAlreadySubmitted
	}
	r.LeadSubmitted = true
	return nil
}

// SnapshotHash fingerprints the fields that identify a CRM submission.
func (r *Record) SnapshotHash() string {
	sum := sha256.Sum256([]byte(r.Name + "|" + r.Phone + "|" + r.InterestedProjectID))
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Remarks != nil {
		out.Remarks = append([]string(nil), r.Remarks...)
	}
	return &out
}
