package middleware

import (
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"valid short hash", "abc123", "abc123", false},
		{"valid full sha256", strings.Repeat("a", 64), strings.Repeat("a", 64), false},
		{"uppercase normalized", "ABC123", "abc123", false},
		{"trims whitespace", "  abc123  ", "abc123", false},
		{"empty", "", "", true},
		{"too long", strings.Repeat("a", 65), "", true},
		{"non-hex", "user@example", "", true},
		{"sql injection", "a'; DROP--", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateUserID(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.wantID {
				t.Errorf("got %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestValidateSubmissionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", "a3bb189e-8bf9-3888-9912-ace4e6543002", false},
		{"uppercase normalized", "A3BB189E-8BF9-3888-9912-ACE4E6543002", false},
		{"empty", "", true},
		{"missing dashes", "a3bb189e8bf9388899 12ace4e6543002", true},
		{"too short", "a3bb189e-8bf9", true},
		{"path traversal", "../../../etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errMsg := ValidateSubmissionID(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"normal description", "pothole near the bus stop", false},
		{"trims whitespace", "  streetlight out  ", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"at limit", strings.Repeat("a", 2000), false},
		{"over limit", strings.Repeat("a", 2001), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errMsg := ValidateDescription(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid slug", "road_damage", "road_damage", false},
		{"uppercase normalized", "Road_Damage", "road_damage", false},
		{"empty is allowed", "", "", false},
		{"leading digit", "1road", "", true},
		{"spaces", "road damage", "", true},
		{"too long", strings.Repeat("a", 33), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateCategory(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/submissions/a3bb189e-8bf9-3888-9912-ace4e6543002", "/api/submissions/:id"},
		{"/api/reports/a3bb189e-8bf9-3888-9912-ace4e6543002", "/api/reports/:id"},
		{"/api/admin/users/abc123/clear-shadow-ban", "/api/admin/users/:userId/clear-shadow-ban"},
		{"/api/admin/ip-bans/deadbeef", "/api/admin/ip-bans/:ipHash"},
		{"/health/live", "/health/live"},
	}
	for _, tt := range tests {
		if got := sanitizePath(tt.in); got != tt.want {
			t.Errorf("sanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
