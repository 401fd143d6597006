package remote

import "testing"

func TestParseHostSpec(t *testing.T) {
	cases := []struct {
		spec string
		want HostSpec
	}{
		{"10.0.0.4", HostSpec{User: "root", Host: "10.0.0.4", Port: 22}},
		{"deploy@10.0.0.4", HostSpec{User: "deploy", Host: "10.0.0.4", Port: 22}},
		{"deploy@10.0.0.4:2222", HostSpec{User: "deploy", Host: "10.0.0.4", Port: 2222}},
		{"host.example.com:22", HostSpec{User: "root", Host: "host.example.com", Port: 22}},
	}
	for _, c := range cases {
		got, err := ParseHostSpec(c.spec, "root", 22)
		if err != nil {
			t.Errorf("ParseHostSpec(%q): %v", c.spec, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseHostSpec(%q) = %+v, want %+v", c.spec, got, c.want)
		}
	}
}

func TestParseHostSpecErrors(t *testing.T) {
	for _, spec := range []string{"", "deploy@", "host:notaport", "host:0"} {
		if _, err := ParseHostSpec(spec, "root", 22); err == nil {
			t.Errorf("ParseHostSpec(%q): expected error", spec)
		}
	}
}

func TestHostSpecAddr(t *testing.T) {
	hs := HostSpec{User: "deploy", Host: "10.0.0.4", Port: 2222}
	if hs.Addr() != "10.0.0.4:2222" {
		t.Errorf("Addr() = %q", hs.Addr())
	}
}
