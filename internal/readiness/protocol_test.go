package readiness

import "testing"

func TestParseProtocol(t *testing.T) {
	cases := []struct {
		in   string
		want Protocol
		ok   bool
	}{
		{"", ProtocolTCP, true},
		{"tcp", ProtocolTCP, true},
		{"socket", ProtocolSocket, true},
		{"HTTP", ProtocolHTTP, true},
		{"https-get", ProtocolHTTPSGet, true},
		{" http-get ", ProtocolHTTPGet, true},
		{"udp", "", false},
		{"ftp", "", false},
	}
	for _, c := range cases {
		got, err := ParseProtocol(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("ParseProtocol(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseProtocol(%q) should fail", c.in)
		}
	}
}

func FuzzParseProtocol(f *testing.F) {
	for _, s := range []string{"", "tcp", "socket", "http", "https", "http-get", "https-get", "udp"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		p, err := ParseProtocol(s)
		if err != nil {
			return
		}
		back, err := ParseProtocol(string(p))
		if err != nil || back != p {
			t.Fatalf("round trip of %q failed: %v", p, err)
		}
	})
}

func TestResourceForms(t *testing.T) {
	cases := []struct {
		proto Protocol
		base  string
		want  string
	}{
		{ProtocolTCP, "", "tcp:localhost:4000"},
		{ProtocolSocket, "ws", "socket:localhost:4000/ws"},
		{ProtocolHTTP, "", "http://localhost:4000"},
		{ProtocolHTTP, "/health", "http://localhost:4000/health"},
		{ProtocolHTTPSGet, "status", "https://localhost:4000/status"},
		{ProtocolHTTPGet, "", "http://localhost:4000"},
	}
	for _, c := range cases {
		got := c.proto.Resource("localhost", 4000, c.base)
		if got != c.want {
			t.Fatalf("Resource(%q, base=%q) = %q, want %q", c.proto, c.base, got, c.want)
		}
	}
}
