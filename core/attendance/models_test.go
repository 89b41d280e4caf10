package attendance

import "testing"

func TestKind_Justify(t *testing.T) {
	k := Kind{Base: BaseAbsence}
	j := k.Justify()

	if !j.Justified {
		t.Error("Justify() did not set the flag")
	}
	if j.Base != k.Base {
		t.Errorf("Justify() changed the base: %s -> %s", k.Base, j.Base)
	}
	// justifying twice is a no-op, never a revert
	if jj := j.Justify(); jj != j {
		t.Errorf("Justify() twice = %+v, want %+v", jj, j)
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Kind{Base: BaseAbsence}, "absence"},
		{Kind{Base: BaseAbsence, Justified: true}, "absence_justified"},
		{Kind{Base: BaseDelay}, "delay"},
		{Kind{Base: BaseDelay, Justified: true}, "delay_justified"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind.String() = %s, want %s", got, tt.want)
		}
	}
}

func TestRollStatus_Base(t *testing.T) {
	tests := []struct {
		status RollStatus
		want   Base
	}{
		{RollAbsence, BaseAbsence},
		{RollDelay, BaseDelay},
		{RollPresent, ""},
		{"vacation", ""},
	}
	for _, tt := range tests {
		if got := tt.status.Base(); got != tt.want {
			t.Errorf("RollStatus(%s).Base() = %s, want %s", tt.status, got, tt.want)
		}
	}
}
