package validation

import (
	"strings"
	"testing"
)

func TestValidateTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr bool
	}{
		{"plain tag", "dotnet", false},
		{"leading hash tolerated", "#dotnet", false},
		{"unicode tag", "caféchat", false},
		{"digits and underscore", "go_1_25", false},
		{"empty", "", true},
		{"hash only", "#", true},
		{"whitespace inside", "two words", true},
		{"punctuation", "tag!", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTag(tt.tag)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTag() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProviderID(t *testing.T) {
	tests := []struct {
		name       string
		providerID string
		wantErr    bool
	}{
		{"upper case", "MASTODON", false},
		{"with dash", "CHAT-RELAY", false},
		{"empty", "", true},
		{"spaces", "CHAT RELAY", true},
		{"too long", strings.Repeat("X", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProviderID(tt.providerID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProviderID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUserName(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		wantErr  bool
	}{
		{"simple handle", "alice", false},
		{"fediverse handle", "@alice@example.social", false},
		{"empty", "", true},
		{"only spaces", "   ", true},
		{"too long", strings.Repeat("a", 101), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserName(tt.userName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNotes(t *testing.T) {
	if err := ValidateNotes(""); err != nil {
		t.Errorf("empty notes should be valid, got %v", err)
	}
	if err := ValidateNotes(strings.Repeat("n", 1001)); err == nil {
		t.Error("expected error for oversized notes")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http", "http://example.com", false},
		{"wss", "wss://relay.example.com/chat", false},
		{"empty", "", true},
		{"no host", "http://", true},
		{"bad scheme", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	if err := ValidateStringLength("ok", 1, 10, "field"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStringLength("", 1, 10, "field"); err == nil {
		t.Error("expected error for too-short string")
	}
	if err := ValidateStringLength(strings.Repeat("x", 11), 1, 10, "field"); err == nil {
		t.Error("expected error for too-long string")
	}
}
