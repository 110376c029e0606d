package types //nolint:revive // types is a valid package name

import "testing"

func TestSessionMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    SessionMeta
		wantErr bool
	}{
		{"empty session_id", SessionMeta{Attempt: 1}, true},
		{"attempt zero", SessionMeta{SessionID: "s-1"}, true},
		{"valid", SessionMeta{SessionID: "s-1", Attempt: 1}, false},
		{"valid later attempt", SessionMeta{SessionID: "s-2", Attempt: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
