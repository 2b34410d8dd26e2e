package forth

import "testing"

func TestCompileBalancedSource(t *testing.T) {
	c := New()
	if c.Name() != "forth" {
		t.Fatalf("expected name 'forth', got %q", c.Name())
	}
	prog, err := c.Compile(": lead 60 note ; lead", nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err.Info)
	}
	if prog == nil {
		t.Fatal("expected a non-nil (empty) program")
	}
}

func TestCompileUnbalancedColon(t *testing.T) {
	c := New()
	if _, err := c.Compile(": lead 60 note", nil); err == nil {
		t.Fatal("expected an unbalanced : / ; error")
	}
}

func TestCompileUnbalancedIf(t *testing.T) {
	c := New()
	if _, err := c.Compile("1 if 60 note", nil); err == nil {
		t.Fatal("expected an unbalanced if / then error")
	}
}

func TestCompileUnbalancedDoLoop(t *testing.T) {
	c := New()
	if _, err := c.Compile("8 0 do 60 note", nil); err == nil {
		t.Fatal("expected an unbalanced do / loop error")
	}
	if _, err := c.Compile("8 0 do 60 note loop", nil); err != nil {
		t.Fatalf("unexpected error for balanced do/loop: %v", err.Info)
	}
}

func TestCompilePlusLoopBalances(t *testing.T) {
	c := New()
	if _, err := c.Compile("8 0 do 60 note 2 +loop", nil); err != nil {
		t.Fatalf("unexpected error for balanced do/+loop: %v", err.Info)
	}
}

func TestCompileEmptySource(t *testing.T) {
	c := New()
	if _, err := c.Compile("", nil); err != nil {
		t.Fatalf("unexpected error for empty source: %v", err.Info)
	}
}
