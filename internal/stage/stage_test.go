package stage

import "testing"

func TestSuccessorChain(t *testing.T) {
	want := []Stage{
		Simple(Requirements),
		Simple(Analysis),
		Simple(Design),
		ImplementationActive(),
		Simple(Testing),
		Simple(Validation),
		Simple(Deployment),
	}

	cur := Simple(Requirements)
	for i := 1; i < len(want); i++ {
		next, ok := cur.Successor()
		if !ok {
			t.Fatalf("stage %s unexpectedly terminal", cur)
		}
		if next != want[i] {
			t.Fatalf("successor of %s = %s, want %s", cur, next, want[i])
		}
		cur = next
	}

	if _, ok := cur.Successor(); ok {
		t.Fatalf("deployment should be terminal")
	}
	if !cur.Terminal() {
		t.Fatalf("Terminal() = false for deployment")
	}
}

func TestStableSuccessorIsTesting(t *testing.T) {
	next, ok := ImplementationStable().Successor()
	if !ok || next != Simple(Testing) {
		t.Fatalf("successor of implementation/stable = %v (ok=%v), want testing", next, ok)
	}
}

func TestBefore(t *testing.T) {
	tests := []struct {
		a, b Stage
		want bool
	}{
		{Simple(Requirements), Simple(Analysis), true},
		{Simple(Analysis), Simple(Requirements), false},
		{Simple(Design), ImplementationActive(), true},
		{ImplementationActive(), ImplementationStable(), true},
		{ImplementationStable(), ImplementationActive(), false},
		{ImplementationStable(), Simple(Testing), true},
		{Simple(Deployment), Simple(Deployment), false},
	}
	for _, tt := range tests {
		if got := tt.a.Before(tt.b); got != tt.want {
			t.Errorf("%s.Before(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseBranch(t *testing.T) {
	tests := []struct {
		branch  string
		want    Stage
		wantErr bool
	}{
		{"requirements", Simple(Requirements), false},
		{"refs/heads/analysis", Simple(Analysis), false},
		{"implementation/active", ImplementationActive(), false},
		{"implementation/stable", ImplementationStable(), false},
		{"implementation", ImplementationActive(), false},
		{"refs/heads/implementation/stable", ImplementationStable(), false},
		{"implementation/frozen", Stage{}, true},
		{"marketing", Stage{}, true},
		{"", Stage{}, true},
	}
	for _, tt := range tests {
		got, err := ParseBranch(tt.branch)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBranch(%q) expected error, got %v", tt.branch, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBranch(%q) unexpected error: %v", tt.branch, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBranch(%q) = %v, want %v", tt.branch, got, tt.want)
		}
	}
}

func TestBranchNameRoundTrip(t *testing.T) {
	for _, s := range All() {
		got, err := ParseBranch(s.BranchName())
		if err != nil {
			t.Fatalf("ParseBranch(%q): %v", s.BranchName(), err)
		}
		if got != s {
			t.Fatalf("round trip %v -> %q -> %v", s, s.BranchName(), got)
		}
	}
}

func TestValid(t *testing.T) {
	if (Stage{Name: Implementation}).Valid() {
		t.Error("implementation without substage should be invalid")
	}
	if (Stage{Name: Requirements, Substage: SubstageActive}).Valid() {
		t.Error("requirements with substage should be invalid")
	}
	if !ImplementationStable().Valid() {
		t.Error("implementation/stable should be valid")
	}
}
