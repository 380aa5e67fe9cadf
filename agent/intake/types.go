package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound                = errors.New("service request not found")
	ErrDuplicateID             = errors.New("duplicate service request id")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrIncompleteRequest       = errors.New("service request is incomplete")
	ErrStorageUnavailable      = errors.New("storage unavailable")
)

type IssueType string

const (
	IssueACRepair      IssueType = "ac_repair"
	IssueHeatingRepair IssueType = "heating_repair"
)

type Ownership string

const (
	OwnershipOwn  Ownership = "own"
	OwnershipRent Ownership = "rent"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusResolved   Status = "resolved"
)

// CanAdvanceTo reports whether next is the immediate forward successor.
// Repeats and backward moves are both invalid.
func (s Status) CanAdvanceTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusDispatched
	case StatusDispatched:
		return next == StatusResolved
	default:
		return false
	}
}

// Request is the business record produced by a completed intake workflow.
type Request struct {
	ID                string    `json:"id"`
	CustomerName      string    `json:"customer_name"`
	ServiceAddress    string    `json:"service_address"`
	UnitInfo          string    `json:"unit_info"`
	Ownership         Ownership `json:"ownership"`
	CallbackPrimary   string    `json:"callback_primary"`
	CallbackAlternate string    `json:"callback_alternate,omitempty"`
	IssueType         IssueType `json:"issue_type"`
	IsEmergency       bool      `json:"is_emergency"`
	IssueDescription  string    `json:"issue_description"`
	CreatedAt         time.Time `json:"created_at"`
	Status            Status    `json:"status"`
}

func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// Stats are derived counts over the repository snapshot.
type Stats struct {
	TotalCount     int `json:"total_count"`
	EmergencyCount int `json:"emergency_count"`
}

// Pending is the scratch record accumulated in session global data before
// submission. Field presence and enum values are enforced at confirm time.
type Pending struct {
	CustomerName      string `json:"customer_name" validate:"required"`
	ServiceAddress    string `json:"service_address" validate:"required"`
	UnitInfo          string `json:"unit_info"`
	Ownership         string `json:"ownership" validate:"required,oneof=own rent"`
	CallbackPrimary   string `json:"callback_primary" validate:"required"`
	CallbackAlternate string `json:"callback_alternate"`
	IssueType         string `json:"issue_type" validate:"required,oneof=ac_repair heating_repair"`
	IsEmergency       *bool  `json:"is_emergency" validate:"required"`
	IssueDescription  string `json:"issue_description" validate:"required"`
}

var validate = validator.New()

// PendingFromData decodes the pending-request sub-map from session global data.
func PendingFromData(data map[string]any) (*Pending, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode pending request: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pending request: %w", err)
	}
	return &p, nil
}

// Validate returns ErrIncompleteRequest naming every missing or invalid field.
func (p *Pending) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrIncompleteRequest, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonFieldName(fe.Field()))
	}
	return fmt.Errorf("%w: %s", ErrIncompleteRequest, strings.Join(fields, ", "))
}

func jsonFieldName(structField string) string {
	var b strings.Builder
	for i, r := range structField {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToRequest converts a validated pending record into a new Request.
func (p *Pending) ToRequest(id string, now time.Time) *Request {
	emergency := false
	if p.IsEmergency != nil {
		emergency = *p.IsEmergency
	}
	return &Request{
		ID:                id,
		CustomerName:      p.CustomerName,
		ServiceAddress:    p.ServiceAddress,
		UnitInfo:          p.UnitInfo,
		Ownership:         Ownership(p.Ownership),
		CallbackPrimary:   p.CallbackPrimary,
		CallbackAlternate: p.CallbackAlternate,
		IssueType:         IssueType(p.IssueType),
		IsEmergency:       emergency,
		IssueDescription:  p.IssueDescription,
		CreatedAt:         now.UTC(),
		Status:            StatusPending,
	}
}

// NewTicketID returns a 6-digit ticket number. Collisions are checked by the
// repository on create.
func NewTicketID() string {
	return strconv.Itoa(rand.IntN(900000) + 100000)
}
