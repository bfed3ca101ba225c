package config

import (
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "8080"); err == nil {
		t.Fatal("expected out of range port to fail")
	}
	t.Setenv("TEST_PORT", "")
	p, err := Port("TEST_PORT", "8083")
	if err != nil || p != "8083" {
		t.Fatalf("expected fallback 8083, got %q (%v)", p, err)
	}
}

func TestPositiveIntAndSeconds(t *testing.T) {
	t.Setenv("TEST_N", "-4")
	if got := PositiveInt("TEST_N", 60); got != 60 {
		t.Fatalf("expected fallback, got %d", got)
	}
	t.Setenv("TEST_SECS", "30")
	if got := Seconds("TEST_SECS", time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("TEST_FLAG", "Yes")
	if !Bool("TEST_FLAG", false) {
		t.Fatal("expected truthy")
	}
	t.Setenv("TEST_LIST", " a, ,b ")
	got := List("TEST_LIST", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
}
