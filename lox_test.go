package lox

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	m := NewVM()
	m.SetOutput(&out)
	m.SetError(&out)
	err := m.Interpret(src)
	return out.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Fatalf("expected 7, got %q", out)
	}
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "foobar" {
		t.Fatalf("expected foobar, got %q", out)
	}
}

func TestClosureCounter(t *testing.T) {
	out, err := run(t, `
fun makeCounter() {
  var i = 0;
  fun count() {
    i = i + 1;
    print i;
  }
  return count;
}
var counter = makeCounter();
counter();
counter();
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Fields(out)
	if len(lines) != 2 || lines[0] != "1" || lines[1] != "2" {
		t.Fatalf("expected 1 then 2, got %q", out)
	}
}

func TestClassInitAndMethod(t *testing.T) {
	out, err := run(t, `
class Counter {
  init(start) {
    this.value = start;
  }
  bump() {
    this.value = this.value + 1;
    return this.value;
  }
}
var c = Counter(10);
print c.bump();
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "11" {
		t.Fatalf("expected 11, got %q", out)
	}
}

func TestSingleInheritanceWithSuper(t *testing.T) {
	out, err := run(t, `
class Animal {
  speak() {
    return "...";
  }
}
class Dog < Animal {
  speak() {
    return "Woof, " + super.speak();
  }
}
print Dog().speak();
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "Woof, ..." {
		t.Fatalf("expected 'Woof, ...', got %q", out)
	}
}

func TestNilPrintingAndUndefinedVariableError(t *testing.T) {
	out, err := run(t, `print nil; print undefinedThing;`)
	if err == nil {
		t.Fatalf("expected a runtime error for undefined variable")
	}
	if !strings.Contains(out, "nil") {
		t.Fatalf("expected nil to have printed before the error, got %q", out)
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected a *RuntimeError, got %T", err)
	}
}

func TestForLoop(t *testing.T) {
	out, err := run(t, `
var sum = 0;
for (var i = 0; i < 5; i = i + 1) {
  sum = sum + i;
}
print sum;
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Fatalf("expected 10, got %q", out)
	}
}

func TestNestedBlockRunsWithNonNegativeByteAccounting(t *testing.T) {
	m := NewVM()
	var out bytes.Buffer
	m.SetOutput(&out)
	m.SetError(&out)
	if err := m.Interpret(`var a = 1; { var b = 2; print a + b; }`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.inner.Heap().BytesAllocated() < 0 {
		t.Fatalf("sanity: byte accounting went negative")
	}
}

func TestStressGCDuringDeepRecursion(t *testing.T) {
	m := NewVM()
	m.SetStressGC(true)
	var out bytes.Buffer
	m.SetOutput(&out)
	m.SetError(&out)
	err := m.Interpret(`
fun fib(n) {
  if (n < 2) return n;
  return fib(n - 1) + fib(n - 2);
}
print fib(10);
`)
	if err != nil {
		t.Fatalf("unexpected error under stress GC: %v", err)
	}
	if strings.TrimSpace(out.String()) != "55" {
		t.Fatalf("expected 55, got %q", out.String())
	}
}
