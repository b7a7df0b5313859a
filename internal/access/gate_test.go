package access

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-homegate/internal/audit"
	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

type mockDoor struct {
	opens int
	err   error
}

func (d *mockDoor) OpenDoor(context.Context) error {
	if d.err != nil {
		return d.err
	}
	d.opens++
	return nil
}

type mockRecorder struct {
	entries []audit.Entry
	err     error
}

func (r *mockRecorder) Create(_ context.Context, e *audit.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *e)
	return nil
}

type ctxKey struct{}

func newGate(t *testing.T, code string) (*Gate, *mockDoor, *mockRecorder) {
	t.Helper()
	store := state.NewStore(1)
	if code != "" {
		store.SetOTP(code)
	}
	door := &mockDoor{}
	rec := &mockRecorder{}
	g, err := New(Options{
		Codes: store,
		Door:  door,
		Audit: rec,
		RequestID: func(ctx context.Context) string {
			id, _ := ctx.Value(ctxKey{}).(string)
			return id
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, door, rec
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name        string
		stored      string
		submitted   string
		wantGranted bool
		wantReason  string
		wantOpens   int
	}{
		{"match", "482913", "482913", true, ReasonGranted, 1},
		{"match with whitespace", "482913", " 482913 ", true, ReasonGranted, 1},
		{"mismatch", "482913", "000000", false, ReasonMismatch, 0},
		{"prefix", "482913", "4829", false, ReasonMismatch, 0},
		{"no code yet", "", "482913", false, ReasonNoCode, 0},
		{"empty submission", "482913", "", false, ReasonEmptySubmission, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, door, rec := newGate(t, tt.stored)

			res, err := g.Verify(context.Background(), tt.submitted, "192.0.2.1")
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if res.Granted != tt.wantGranted || res.Reason != tt.wantReason {
				t.Errorf("Verify() = %+v, want granted=%v reason=%s", res, tt.wantGranted, tt.wantReason)
			}
			if door.opens != tt.wantOpens {
				t.Errorf("door opens = %d, want %d", door.opens, tt.wantOpens)
			}
			if len(rec.entries) != 1 {
				t.Fatalf("audit entries = %d, want 1", len(rec.entries))
			}
		})
	}
}

func TestVerify_CodeIsReusable(t *testing.T) {
	g, door, _ := newGate(t, "1234")

	for i := 0; i < 3; i++ {
		res, err := g.Verify(context.Background(), "1234", "kiosk")
		if err != nil || !res.Granted {
			t.Fatalf("attempt %d: Verify() = %+v, %v", i+1, res, err)
		}
	}
	if door.opens != 3 {
		t.Errorf("door opens = %d, want 3", door.opens)
	}
}

func TestVerify_DoorFailure(t *testing.T) {
	g, door, rec := newGate(t, "1234")
	door.err = errors.New("broker down")

	res, err := g.Verify(context.Background(), "1234", "kiosk")
	if !errors.Is(err, ErrDoorUnavailable) {
		t.Errorf("Verify() error = %v, want ErrDoorUnavailable", err)
	}
	if res.Granted {
		t.Error("Granted = true when the door command failed")
	}
	if rec.entries[0].Outcome != audit.OutcomeError {
		t.Errorf("audit outcome = %q, want error", rec.entries[0].Outcome)
	}
}

func TestVerify_AuditNeverStoresCode(t *testing.T) {
	g, _, rec := newGate(t, "765432")
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")

	_, _ = g.Verify(ctx, "765432", "")
	_, _ = g.Verify(ctx, "111111", "10.0.0.2")

	if len(rec.entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(rec.entries))
	}
	for _, e := range rec.entries {
		if e.Reason == "765432" || e.Reason == "111111" {
			t.Errorf("audit entry carries the code: %+v", e)
		}
		if e.RequestID != "req-42" {
			t.Errorf("RequestID = %q, want req-42", e.RequestID)
		}
	}
	if rec.entries[0].Source != "unknown" {
		t.Errorf("empty source recorded as %q, want unknown", rec.entries[0].Source)
	}
	if rec.entries[1].Outcome != audit.OutcomeDenied || rec.entries[1].Reason != ReasonMismatch {
		t.Errorf("second entry = %+v", rec.entries[1])
	}
}

func TestVerify_AuditFailureDoesNotChangeResult(t *testing.T) {
	g, door, rec := newGate(t, "1234")
	rec.err = errors.New("disk full")

	res, err := g.Verify(context.Background(), "1234", "kiosk")
	if err != nil || !res.Granted || door.opens != 1 {
		t.Errorf("Verify() = %+v, %v, opens=%d", res, err, door.opens)
	}
}

func TestNew_Requires(t *testing.T) {
	if _, err := New(Options{Door: &mockDoor{}}); err == nil {
		t.Error("New() without code source: expected error")
	}
	if _, err := New(Options{Codes: state.NewStore(1)}); err == nil {
		t.Error("New() without door: expected error")
	}
}
