package intake

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStatusCanAdvanceTo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusDispatched, true},
		{StatusDispatched, StatusResolved, true},
		{StatusPending, StatusResolved, false},
		{StatusPending, StatusPending, false},
		{StatusDispatched, StatusPending, false},
		{StatusResolved, StatusResolved, false},
		{StatusResolved, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func validPending() *Pending {
	emergency := true
	return &Pending{
		CustomerName:     "John Smith",
		ServiceAddress:   "123 Main St",
		UnitInfo:         "Trane rooftop",
		Ownership:        "own",
		CallbackPrimary:  "+15551234567",
		IssueType:        "ac_repair",
		IsEmergency:      &emergency,
		IssueDescription: "AC not cooling",
	}
}

func TestPendingValidateComplete(t *testing.T) {
	t.Parallel()

	if err := validPending().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	// unit_info and callback_alternate are optional.
	p := validPending()
	p.UnitInfo = ""
	p.CallbackAlternate = ""
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestPendingValidateNamesMissingFields(t *testing.T) {
	t.Parallel()

	p := validPending()
	p.CustomerName = ""
	p.IsEmergency = nil
	p.Ownership = "lease"

	err := p.Validate()
	if !errors.Is(err, ErrIncompleteRequest) {
		t.Fatalf("expected ErrIncompleteRequest, got %v", err)
	}
	for _, field := range []string{"customer_name", "is_emergency", "ownership"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error does not name %q: %v", field, err)
		}
	}
}

func TestPendingFromDataIgnoresStrayKeys(t *testing.T) {
	t.Parallel()

	p, err := PendingFromData(map[string]any{
		"customer_name": "Pat",
		"is_emergency":  false,
		"stray":         "ignored",
	})
	if err != nil {
		t.Fatalf("PendingFromData() error = %v", err)
	}
	if p.CustomerName != "Pat" {
		t.Fatalf("unexpected pending: %+v", p)
	}
	if p.IsEmergency == nil || *p.IsEmergency {
		t.Fatalf("unexpected emergency flag: %v", p.IsEmergency)
	}
}

func TestToRequest(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("CST", -6*3600))
	req := validPending().ToRequest("402581", now)

	if req.ID != "402581" {
		t.Fatalf("unexpected id: %s", req.ID)
	}
	if req.Status != StatusPending {
		t.Fatalf("new requests must start pending, got %s", req.Status)
	}
	if !req.IsEmergency {
		t.Fatal("emergency flag lost")
	}
	if req.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at must be UTC, got %v", req.CreatedAt.Location())
	}
	if req.IssueType != IssueACRepair || req.Ownership != OwnershipOwn {
		t.Fatalf("unexpected enums: %s %s", req.IssueType, req.Ownership)
	}
}

func TestNewTicketID(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		id := NewTicketID()
		if len(id) != 6 {
			t.Fatalf("expected 6 digits, got %q", id)
		}
		if id[0] == '0' {
			t.Fatalf("ticket id must not have a leading zero: %q", id)
		}
	}
}
