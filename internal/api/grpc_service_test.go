package api

import (
	"runtime"
	"strings"
	"testing"
)

func TestResolveControlAddr(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"data/control.sock", "unix:data/control.sock"},
		{"unix:///tmp/custom.sock", "unix:///tmp/custom.sock"},
		{"npipe:\\\\.\\pipe\\custom", "npipe:\\\\.\\pipe\\custom"},
		{"127.0.0.1:9000", "127.0.0.1:9000"},
	}
	for _, c := range cases {
		if got := resolveControlAddr(c.in); got != c.want {
			t.Errorf("resolveControlAddr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveControlAddrDefault(t *testing.T) {
	got := resolveControlAddr("")
	if runtime.GOOS == "windows" {
		if !strings.HasPrefix(got, "npipe:") {
			t.Errorf("default on windows = %q, want npipe", got)
		}
		return
	}
	if !strings.HasPrefix(got, "unix:") {
		t.Errorf("default = %q, want unix socket", got)
	}
}
