package homedir

import (
	"path/filepath"
	"testing"
)

func TestPathUsesHOME(t *testing.T) {
	t.Setenv("HOME", "/home/pigeon")
	got, err := Path(".sendpigeon", "config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/pigeon", ".sendpigeon", "config.yaml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}
