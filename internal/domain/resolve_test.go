package domain

import "testing"

func TestResolve(t *testing.T) {
	f, err := NewForest([]FeatureNode{
		{ID: "F1", Title: "User Authentication"},
		{ID: "F1a", Title: "Login", ParentID: "F1"},
		{ID: "F1b", Title: "Login with SSO", ParentID: "F1"},
		{ID: "F2", Title: "Reports"},
	})
	if err != nil {
		t.Fatalf("NewForest failed: %v", err)
	}

	tests := []struct {
		name      string
		id        string
		title     string
		wantID    string
		wantKind  MatchKind
		ambiguous bool
	}{
		{"known id wins over title", "F2", "Login", "F2", MatchID, false},
		{"unknown id falls back to title", "F99", "reports", "F2", MatchTitle, false},
		{"exact title ignores case and spacing", "", "  user   AUTHENTICATION ", "F1", MatchTitle, false},
		{"exact beats substring", "", "login", "F1a", MatchTitle, false},
		{"reported title inside node title", "", "Authentication", "F1", MatchSubstring, false},
		{"node title inside reported title", "", "Reports dashboard page", "F2", MatchSubstring, false},
		{"ambiguous substring takes walk order", "", "log", "F1a", MatchSubstring, true},
		{"no match", "", "Billing", "", MatchNone, false},
		{"empty record", "", "", "", MatchNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(f.Walk(), tt.id, tt.title)
			if r.Kind != tt.wantKind {
				t.Fatalf("expected kind %s, got %s", tt.wantKind, r.Kind)
			}
			if r.Resolved() && r.Node.ID != tt.wantID {
				t.Errorf("expected %s, got %s", tt.wantID, r.Node.ID)
			}
			if r.Ambiguous() != tt.ambiguous {
				t.Errorf("expected ambiguous=%v, candidates %v", tt.ambiguous, r.Candidates)
			}
		})
	}
}

func TestResolve_ScopedCandidates(t *testing.T) {
	candidates := []FeatureNode{{ID: "F2", Title: "Reports"}}

	if r := Resolve(candidates, "F1", "Login"); r.Resolved() {
		t.Errorf("expected no match outside the candidate set, got %s", r.Node.ID)
	}
}
