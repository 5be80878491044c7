package relay

import "testing"

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BUS-001", "BUS-001"},
		{"route 12", "route_12"},
		{"a.b.c", "a_b_c"},
		{"wild*card", "wild_card"},
		{"match>all", "match_all"},
		{"north/south", "north_south"},
		{"  padded  ", "padded"},
		{"", "_"},
		{"   ", "_"},
	}
	for _, tt := range tests {
		if got := subjectToken(tt.in); got != tt.want {
			t.Errorf("subjectToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
