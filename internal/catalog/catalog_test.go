package catalog

import "testing"

func TestLookupKnown(t *testing.T) {
	tests := []struct {
		id    uint8
		name  string
		shape Shape
	}{
		{CmdHeartbeat, "heartbeat", ShapeEmpty},
		{CmdActionListResponse, "action_list_response", ShapeActionList},
		{CmdDeleteAction, "delete_action", ShapeFixedField},
		{CmdRenameAction, "rename_action", ShapeRenamePair},
		{CmdRecordToggle, "record_toggle", ShapeRaw},
	}

	c := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := c.Lookup(tt.id)
			if s.Name != tt.name || s.Shape != tt.shape {
				t.Errorf("Lookup(0x%02X) = %+v", tt.id, s)
			}
			if !c.Known(tt.id) {
				t.Errorf("Known(0x%02X) = false", tt.id)
			}
		})
	}
}

func TestLookupUnknownIsRaw(t *testing.T) {
	s := Default().Lookup(0xEE)
	if s.Shape != ShapeRaw {
		t.Errorf("shape = %v, want raw", s.Shape)
	}
	if s.Name != "unknown_0xEE" {
		t.Errorf("name = %q", s.Name)
	}
	if Default().Known(0xEE) {
		t.Error("Known(0xEE) = true")
	}
}

func TestDefaultIsShared(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same table")
	}
}

func TestNewWithExtra(t *testing.T) {
	c := New(
		Schema{ID: 0x30, Name: "calibrate", Shape: ShapeEmpty},
		Schema{ID: CmdRecordToggle, Name: "record_toggle_v2", Shape: ShapeFixedField},
		Schema{ID: 0x31},
	)
	if s := c.Lookup(0x30); s.Name != "calibrate" {
		t.Errorf("extra entry = %+v", s)
	}
	if s := c.Lookup(CmdRecordToggle); s.Shape != ShapeFixedField {
		t.Errorf("override = %+v", s)
	}
	if s := c.Lookup(0x31); s.Name != "unknown_0x31" || !c.Known(0x31) {
		t.Errorf("unnamed extra = %+v", s)
	}
	if Default().Lookup(0x30).Name == "calibrate" {
		t.Error("New must not modify the default catalog")
	}
}

func TestEncryptedFields(t *testing.T) {
	rename := Default().Lookup(CmdRenameAction)
	fields := rename.EncryptedFields()
	if len(fields) != 2 {
		t.Fatalf("rename fields = %d", len(fields))
	}
	if fields[1].Name != "new_name" || fields[1].Offset != 32 || fields[1].End() != 64 {
		t.Errorf("new_name = %+v", fields[1])
	}
	if f, ok := rename.Field("old_name"); !ok || f.Offset != 0 {
		t.Errorf("Field(old_name) = %+v, %v", f, ok)
	}
	if _, ok := rename.Field("name"); ok {
		t.Error("rename has no plain name field")
	}
	if ShapeActionList.EncryptedFields() != nil {
		t.Error("action lists carry plaintext names")
	}
}

func TestParseShape(t *testing.T) {
	for _, name := range []string{"raw", "empty", "action_list", "fixed_field", "Rename_Pair "} {
		if _, err := ParseShape(name); err != nil {
			t.Errorf("ParseShape(%q): %v", name, err)
		}
	}
	if _, err := ParseShape("bitmap"); err == nil {
		t.Error("ParseShape(bitmap) should fail")
	}
}

func TestSchemasSorted(t *testing.T) {
	schemas := Default().Schemas()
	for i := 1; i < len(schemas); i++ {
		if schemas[i-1].ID >= schemas[i].ID {
			t.Fatalf("schemas not sorted at %d", i)
		}
	}
	if s, ok := Default().ByName("play_action"); !ok || s.ID != CmdPlayAction {
		t.Errorf("ByName(play_action) = %+v, %v", s, ok)
	}
}
