package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "report.json", want: "report.json"},
		{in: " a/b\\c.json ", want: "a_b_c.json"},
		{in: "../x.json", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
