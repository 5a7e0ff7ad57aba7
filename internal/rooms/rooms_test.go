package rooms

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestJitsiMinterFormat(t *testing.T) {
	m := NewJitsiMinter("https://meet.jit.si/")
	m.random = bytes.NewReader(bytes.Repeat([]byte{0xab}, 16))

	url, err := m.Mint(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	want := "https://meet.jit.si/" + strings.Repeat("ab", 16)
	if url != want {
		t.Fatalf("expected %s, got %s", want, url)
	}
}

func TestJitsiMinterUnique(t *testing.T) {
	m := NewJitsiMinter("https://meet.jit.si")
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		url, err := m.Mint(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if seen[url] {
			t.Fatalf("duplicate room %s", url)
		}
		seen[url] = true
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestJitsiMinterRandomFailure(t *testing.T) {
	m := NewJitsiMinter("https://meet.jit.si")
	m.random = failingReader{}
	if _, err := m.Mint(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}
