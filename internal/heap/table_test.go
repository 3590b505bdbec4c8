package heap

import "testing"

func TestTableSetGetDelete(t *testing.T) {
	tbl := NewTable()
	key := &ObjString{Chars: "answer", Hash: hashString("answer")}

	if !tbl.Set(key, NumberVal(42)) {
		t.Fatalf("expected Set to report a new key")
	}
	v, ok := tbl.Get(key)
	if !ok || v.Number != 42 {
		t.Fatalf("expected 42, got %v ok=%v", v, ok)
	}

	if tbl.Set(key, NumberVal(43)) {
		t.Fatalf("expected Set to report an existing key on overwrite")
	}
	v, _ = tbl.Get(key)
	if v.Number != 43 {
		t.Fatalf("expected overwrite to take effect, got %v", v.Number)
	}

	if !tbl.Delete(key) {
		t.Fatalf("expected Delete to succeed")
	}
	if _, ok := tbl.Get(key); ok {
		t.Fatalf("expected Get after Delete to fail")
	}
}

func TestTableGrowsAndSurvivesTombstones(t *testing.T) {
	tbl := NewTable()
	keys := make([]*ObjString, 0, 64)
	for i := 0; i < 64; i++ {
		s := string(rune('a' + i%26))
		for j := 0; j < i/26+1; j++ {
			s += string(rune('a' + i%26))
		}
		key := &ObjString{Chars: s, Hash: hashString(s)}
		keys = append(keys, key)
		tbl.Set(key, NumberVal(float64(i)))
	}

	for i := 0; i < len(keys); i += 2 {
		if !tbl.Delete(keys[i]) {
			t.Fatalf("delete %d failed", i)
		}
	}
	for i := 1; i < len(keys); i += 2 {
		v, ok := tbl.Get(keys[i])
		if !ok || v.Number != float64(i) {
			t.Fatalf("expected surviving key %d to remain, got %v ok=%v", i, v, ok)
		}
	}
}

func TestFindStringInterning(t *testing.T) {
	h := New()
	a := h.InternString("hello")
	b := h.InternString("hello")
	if a != b {
		t.Fatalf("expected interning to return the same object for equal content")
	}
	c := h.InternString("world")
	if a == c {
		t.Fatalf("expected distinct content to intern to distinct objects")
	}
}
