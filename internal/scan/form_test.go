package scan

import (
	"testing"
)

func TestFormSubmit_AdvancesInOrder(t *testing.T) {
	var f Form
	order := []Field{FieldItemNo, FieldItemName, FieldWosNo, FieldDwg, FieldDieNo, FieldLotNo}
	for i, field := range order {
		if f.Focus() != field {
			t.Fatalf("step %d: expected focus %s, got %s", i, field, f.Focus())
		}
		res := f.Submit(field, "v")
		if !res.Advanced || res.Confirm {
			t.Fatalf("step %d: unexpected result %+v", i, res)
		}
		if f.Focus() != field.Next() {
			t.Errorf("step %d: expected focus %s, got %s", i, field.Next(), f.Focus())
		}
	}
	if f.Focus() != FieldQty {
		t.Fatalf("Expected focus on qty, got %s", f.Focus())
	}
}

func TestFormSubmit_EmptyNeverAdvances(t *testing.T) {
	for i := 0; i < NumFields; i++ {
		var f Form
		field := Field(i)
		res := f.Submit(field, "   ")
		if res.Advanced || res.Confirm {
			t.Errorf("%s: empty submit should not advance, got %+v", field, res)
		}
		if f.Focus() != field {
			t.Errorf("%s: expected focus to stay, got %s", field, f.Focus())
		}
	}
}

func fill(f *Form, qty string) SubmitResult {
	vals := []string{"10000206936", "YOKE#1", "JB615021K002", "A19-321027-3E", "D8", "L26119AB4"}
	for i, v := range vals {
		f.Submit(Field(i), v)
	}
	return f.Submit(FieldQty, qty)
}

func TestFormSubmit_QtyConfirmsWhenValid(t *testing.T) {
	var f Form
	if res := fill(&f, "4000"); !res.Confirm {
		t.Fatalf("Expected confirm, got %+v", res)
	}
	box := f.Box(9)
	if box.HeadTempID != 9 || box.Qty != 4000 || box.WosNo != "JB615021K002" || box.DieNo != "D8" {
		t.Errorf("Unexpected box payload %+v", box)
	}
}

func TestFormSubmit_QtyGating(t *testing.T) {
	for _, qty := range []string{"0", "-1", "1.5", "abc", "NaN"} {
		var f Form
		if res := fill(&f, qty); res.Confirm {
			t.Errorf("qty %q: expected no confirm", qty)
		}
		if f.Value(FieldItemNo) == "" || f.Value(FieldQty) != qty {
			t.Errorf("qty %q: fields should not be cleared", qty)
		}
		if f.Focus() != FieldQty {
			t.Errorf("qty %q: expected focus on qty, got %s", qty, f.Focus())
		}
	}
}

func TestFormSubmit_QtyWithMissingField(t *testing.T) {
	var f Form
	f.Submit(FieldItemNo, "I1")
	f.Submit(FieldItemName, "Name")
	f.Submit(FieldDwg, "D")
	res := f.Submit(FieldQty, "5")
	if res.Confirm {
		t.Fatal("Expected no confirm with empty WOS No.")
	}
	if f.Focus() != FieldWosNo {
		t.Errorf("Expected focus on first missing field, got %s", f.Focus())
	}
	ve := f.Validate()
	if ve.First() != "กรุณากรอก WOS No." {
		t.Errorf("Unexpected first message %q", ve.First())
	}
}

func TestFormClear(t *testing.T) {
	var f Form
	fill(&f, "1")
	f.Clear()
	for i := 0; i < NumFields; i++ {
		if f.Value(Field(i)) != "" {
			t.Errorf("Expected %s empty", Field(i))
		}
	}
	if f.Focus() != FieldItemNo {
		t.Errorf("Expected focus reset, got %s", f.Focus())
	}
}

func TestParseField(t *testing.T) {
	f, err := ParseField("dieNo")
	if err != nil || f != FieldDieNo {
		t.Errorf("Expected dieNo, got %v %v", f, err)
	}
	if _, err := ParseField("color"); err == nil {
		t.Error("Expected error for unknown field")
	}
}
