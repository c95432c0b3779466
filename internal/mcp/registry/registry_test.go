package registry

import (
	"context"
	"reflect"
	"testing"
)

func echo(_ context.Context, input any) (any, error) { return input, nil }

func TestRegistry_MatchesToolNamesCaseInsensitively(t *testing.T) {
	reg := New()
	if err := reg.Register(" AssetTree ", echo); err != nil {
		t.Fatalf("register: %v", err)
	}

	h, ok := reg.HandlerFor("assettree")
	if !ok {
		t.Fatal("expected handler for lower-case name")
	}
	out, err := h(context.Background(), "ping")
	if err != nil || out != "ping" {
		t.Fatalf("unexpected handler result %v, %v", out, err)
	}

	if err := reg.Register("ASSETTREE", echo); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if got := reg.Tools(); !reflect.DeepEqual(got, []string{"AssetTree"}) {
		t.Fatalf("unexpected tools %v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Len())
	}
}

func TestRegistry_RejectsIncompleteRegistrations(t *testing.T) {
	reg := New()
	if err := reg.Register("assettree", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := reg.Register("   ", echo); err == nil {
		t.Fatal("expected error for blank tool name")
	}
	if _, ok := reg.HandlerFor("assettree"); ok {
		t.Fatal("expected no handler after failed registrations")
	}
}
