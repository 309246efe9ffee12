package scan

import (
	"fmt"
	"strings"

	"plating/internal/models"
	"plating/internal/validation"
)

// Field is one input of the box scan form, in scan order.
type Field int

const (
	FieldItemNo Field = iota
	FieldItemName
	FieldWosNo
	FieldDwg
	FieldDieNo
	FieldLotNo
	FieldQty
)

// NumFields is the number of scan form inputs.
const NumFields = int(FieldQty) + 1

var fieldNames = [NumFields]string{"itemNo", "itemName", "wosNo", "dwg", "dieNo", "lotNo", "qty"}

var fieldRequired = [NumFields]string{
	"กรุณากรอก Item No.",
	"กรุณากรอก Item Name",
	"กรุณากรอก WOS No.",
	"กรุณากรอก DWG",
	"กรุณากรอก Die No.",
	"กรุณากรอก Lot No.",
	"กรุณากรอก QTY",
}

func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField maps a JSON field name to a Field.
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scan field %q", name)
}

// Next returns the field after f; the last field has no successor and returns itself.
func (f Field) Next() Field {
	if f >= FieldQty {
		return FieldQty
	}
	return f + 1
}

// Form is the seven-field box scan form and its input focus.
type Form struct {
	values [NumFields]string
	focus  Field
}

// SubmitResult says what a field submit did.
type SubmitResult struct {
	Advanced bool
	// Confirm is set when the quantity field was submitted and every field validates.
	Confirm bool
}

// Submit records value for field as the Enter key on that input would.
// An empty value keeps focus in place. A non-empty value advances focus,
// except on the quantity field, which asks for confirmation when the whole
// form is valid and otherwise moves focus to the first invalid field.
func (f *Form) Submit(field Field, value string) SubmitResult {
	if field < 0 || int(field) >= NumFields {
		return SubmitResult{}
	}
	value = strings.TrimSpace(value)
	f.values[field] = value
	if value == "" {
		f.focus = field
		return SubmitResult{}
	}
	if field != FieldQty {
		f.focus = field.Next()
		return SubmitResult{Advanced: true}
	}
	if bad, ok := f.firstInvalid(); ok {
		f.focus = bad
		return SubmitResult{}
	}
	f.focus = FieldQty
	return SubmitResult{Confirm: true}
}

// Set fills one field without moving focus.
func (f *Form) Set(field Field, value string) {
	if field >= 0 && int(field) < NumFields {
		f.values[field] = strings.TrimSpace(value)
	}
}

func (f *Form) Value(field Field) string { return f.values[field] }
func (f *Form) Focus() Field             { return f.focus }

// Clear empties the form and refocuses the first field.
func (f *Form) Clear() {
	*f = Form{}
}

func (f *Form) firstInvalid() (Field, bool) {
	for i := 0; i < NumFields-1; i++ {
		if f.values[i] == "" {
			return Field(i), true
		}
	}
	if _, ok := validation.ParseQty(f.values[FieldQty]); !ok {
		return FieldQty, true
	}
	return 0, false
}

// Validate checks every field; the first message is the one shown to the operator.
func (f *Form) Validate() *validation.ValidationErrors {
	ve := &validation.ValidationErrors{}
	for i := 0; i < NumFields-1; i++ {
		validation.RequireFieldMsg(ve, fieldNames[i], f.values[i], fieldRequired[i])
	}
	if _, ok := validation.ParseQty(f.values[FieldQty]); !ok {
		ve.Add(fieldNames[FieldQty], fieldRequired[FieldQty])
	}
	return ve
}

// Box builds the create-box payload; call only after Validate passes.
func (f *Form) Box(headerID int) models.BoxInput {
	qty, _ := validation.ParseQty(f.values[FieldQty])
	return models.BoxInput{
		HeadTempID: headerID,
		ItemNo:     f.values[FieldItemNo],
		ItemName:   f.values[FieldItemName],
		WosNo:      f.values[FieldWosNo],
		Dwg:        f.values[FieldDwg],
		DieNo:      f.values[FieldDieNo],
		LotNo:      f.values[FieldLotNo],
		Qty:        qty,
	}
}

// FormView is the JSON form of a Form.
type FormView struct {
	Values map[string]string `json:"values"`
	Focus  string            `json:"focus"`
}

func (f *Form) View() FormView {
	v := FormView{Values: make(map[string]string, NumFields), Focus: f.focus.String()}
	for i, n := range fieldNames {
		v.Values[n] = f.values[i]
	}
	return v
}
