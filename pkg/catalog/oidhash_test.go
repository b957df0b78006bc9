package catalog

import "testing"

func TestObjectOIDForNameDeterministic(t *testing.T) {
	a := ObjectOIDForName("table", "widgets")
	b := ObjectOIDForName("table", "widgets")
	if a != b {
		t.Errorf("ObjectOIDForName must be deterministic: got %d and %d", a, b)
	}
}

func TestObjectOIDForNameAboveReservedRange(t *testing.T) {
	if got := ObjectOIDForName("table", "widgets"); got < oidBase {
		t.Errorf("OID %d is below oidBase %d, collides with well-known Postgres OIDs", got, oidBase)
	}
}

func TestObjectOIDForNameDistinguishesKind(t *testing.T) {
	tableOID := ObjectOIDForName("table", "widgets")
	columnOID := ObjectOIDForName("column", "widgets")
	if tableOID == columnOID {
		t.Errorf("different kinds with the same name should not collide: both got %d", tableOID)
	}
}

func TestObjectOIDForNameDistinguishesName(t *testing.T) {
	a := ObjectOIDForName("table", "widgets")
	b := ObjectOIDForName("table", "gadgets")
	if a == b {
		t.Errorf("different names should not collide: both got %d", a)
	}
}
