package instr

import "testing"

func TestDeclareFillsLowestFreeSlot(t *testing.T) {
	s := &LogicalStore{}

	if r := s.Declare("X"); r != Inserted {
		t.Fatalf("Declare(X) = %v, want Inserted", r)
	}
	addr, ok := s.GetAddress("X")
	if !ok || addr != "00000" {
		t.Fatalf("GetAddress(X) = %q, %v, want 00000, true", addr, ok)
	}

	if r := s.Declare("Y"); r != Inserted {
		t.Fatalf("Declare(Y) = %v, want Inserted", r)
	}
	addr, ok = s.GetAddress("Y")
	if !ok || addr != "00002" {
		t.Fatalf("GetAddress(Y) = %q, %v, want 00002, true", addr, ok)
	}
}

func TestDeclareAlreadyPresentIsSilentFailure(t *testing.T) {
	s := &LogicalStore{}
	s.Declare("X")
	s.SetValue("X", 42)

	if r := s.Declare("X"); r != AlreadyPresent {
		t.Fatalf("Declare(X) again = %v, want AlreadyPresent", r)
	}
	v, ok := s.GetValue("X")
	if !ok || v != 42 {
		t.Fatalf("value clobbered by repeat Declare: got %d, %v", v, ok)
	}
}

func TestDeclareFullWhenThirtyThreeVariables(t *testing.T) {
	s := &LogicalStore{}
	for i := 0; i < StoreSlots; i++ {
		name := string(rune('a' + i%26))
		if i >= 26 {
			name += "2"
		}
		if r := s.Declare(name); r != Inserted {
			t.Fatalf("Declare(%s) at i=%d = %v, want Inserted", name, i, r)
		}
	}
	if r := s.Declare("overflow"); r != Full {
		t.Fatalf("Declare(overflow) = %v, want Full", r)
	}
}

func TestSetValueFailsWhenNameAbsent(t *testing.T) {
	s := &LogicalStore{}
	if s.SetValue("nope", 1) {
		t.Fatal("SetValue on unknown name should fail")
	}
}

func TestInsertWithValue(t *testing.T) {
	s := &LogicalStore{}
	s.InsertWithValue("X", 65535)
	v, ok := s.GetValue("X")
	if !ok || v != 65535 {
		t.Fatalf("InsertWithValue: got %d, %v, want 65535, true", v, ok)
	}
}
