package steamid

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"profiles url", "https://steamcommunity.com/profiles/76561198855025047", "76561198855025047", true},
		{"profiles url trailing path", "https://steamcommunity.com/profiles/76561198855025047/games/?tab=all", "76561198855025047", true},
		{"profiles wins over digit run", "12345678 https://steamcommunity.com/profiles/765", "765", true},
		{"vanity url", "https://steamcommunity.com/id/s1mple/", "s1mple", true},
		{"vanity wins over digit run", "https://steamcommunity.com/id/player99999/", "player99999", true},
		{"bare digit run", "Counter Strike 2: 76561198000000001", "76561198000000001", true},
		{"first digit run", "ids 123456 and 7654321", "123456", true},
		{"short digits", "call me at 1234", "", false},
		{"digits glued to letters", "abc123456def", "", false},
		{"empty", "", "", false},
		{"plain text", "just a nickname", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Extract(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToAccountID(t *testing.T) {
	got, err := ToAccountID("76561198855025047")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "894759319" {
		t.Fatalf("got %q, want %q", got, "894759319")
	}

	// Past 2^53 a float64 subtraction would be off by one or more.
	got, err = ToAccountID("76561199999999999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2039734271" {
		t.Fatalf("got %q, want %q", got, "2039734271")
	}

	if _, err := ToAccountID("s1mple"); err != ErrNotNumeric {
		t.Fatalf("expected ErrNotNumeric, got %v", err)
	}
	if _, err := ToAccountID("12345"); err != ErrBelowBaseline {
		t.Fatalf("expected ErrBelowBaseline, got %v", err)
	}
}

func TestProfileURL(t *testing.T) {
	if got := ProfileURL("76561198855025047"); got != "https://steamcommunity.com/profiles/76561198855025047" {
		t.Fatalf("unexpected numeric url %q", got)
	}
	if got := ProfileURL("s1mple"); got != "https://steamcommunity.com/id/s1mple" {
		t.Fatalf("unexpected vanity url %q", got)
	}
}
