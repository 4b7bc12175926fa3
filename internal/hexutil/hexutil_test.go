package hexutil

import (
	"strings"
	"testing"
)

func TestHexEscapeTable(t *testing.T) {
	cases := []struct {
		b    byte
		want string
	}{
		{0x00, `\x00`},
		{0x1b, `\x1b`},
		{0x7f, `\x7f`},
		{0xff, `\xff`},
	}
	for _, tc := range cases {
		if got := HexEscape[tc.b]; got != tc.want {
			t.Errorf("HexEscape[%#02x] = %q, want %q", tc.b, got, tc.want)
		}
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		data string
		max  int
		want string
	}{
		{"plain ascii", `{"jsonrpc":"2.0"}`, 0, `{"jsonrpc":"2.0"}`},
		{"newline escaped", "a\nb", 0, `a\nb`},
		{"tab and cr", "a\t\rb", 0, `a\t\rb`},
		{"backslash doubled", `a\b`, 0, `a\\b`},
		{"control byte", "a\x01b", 0, `a\x01b`},
		{"high byte", "a\xffb", 0, `a\xffb`},
		{"truncated", strings.Repeat("x", 100), 10, "xxxxxxxxxx... (100 bytes)"},
		{"exact fit not truncated", "abcde", 5, "abcde"},
		{"empty", "", 64, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview([]byte(tt.data), tt.max); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewSingleLine(t *testing.T) {
	// Whatever goes in, the preview must stay on one log line.
	in := []byte("line1\nline2\r\nline3\x00\x1b[31m")
	out := Preview(in, 0)
	if strings.ContainsAny(out, "\n\r") {
		t.Errorf("Preview() contains raw line breaks: %q", out)
	}
}

func BenchmarkPreview(b *testing.B) {
	data := []byte(strings.Repeat(`{"jsonrpc":"2.0","method":"tools/call"}`+"\n", 16))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Preview(data, 256)
	}
}
