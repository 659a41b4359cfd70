package domain

import (
	"encoding/json"
	"testing"
)

func TestRecordValueMissing(t *testing.T) {
	var r Record
	if _, ok := r.Value(KeyOSNR); ok {
		t.Fatalf("expected missing value on empty record")
	}

	r.Values = map[string]float64{KeyOSNR: 31}
	v, ok := r.Value(KeyOSNR)
	if !ok || v != 31 {
		t.Fatalf("expected osnr 31, got %v (ok=%v)", v, ok)
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	r := &Record{DeviceID: "switch_1", Values: map[string]float64{KeyBER: 1e-9}}
	c := r.Clone()
	c.Values[KeyBER] = 1

	if r.Values[KeyBER] != 1e-9 {
		t.Fatalf("clone shares values map with original")
	}
}

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		name    string
		rec     *Record
		wantErr bool
	}{
		{"ok", &Record{DeviceID: "a", Values: map[string]float64{KeyOSNR: 30, KeyBER: 1e-9, KeyWavelength: 1550.1}}, false},
		{"no metrics", &Record{DeviceID: "a"}, false},
		{"missing device", &Record{}, true},
		{"wavelength", &Record{DeviceID: "a", Values: map[string]float64{KeyWavelength: 1400}}, true},
		{"osnr", &Record{DeviceID: "a", Values: map[string]float64{KeyOSNR: 41}}, true},
		{"ber", &Record{DeviceID: "a", Values: map[string]float64{KeyBER: 2}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestVerdictJSON(t *testing.T) {
	b, err := json.Marshal(Failed("boom"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"verdict":"error","reason":"boom"}`
	if string(b) != want {
		t.Fatalf("expected %s, got %s", want, b)
	}
}
