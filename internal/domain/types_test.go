package domain

import "testing"

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateInitialized, "initialized"},
		{SessionState(7), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestZeroStateIsUninitialized(t *testing.T) {
	var s SessionState
	if s != StateUninitialized {
		t.Errorf("zero SessionState = %v, want uninitialized", s)
	}
}
