package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "already e164", raw: "+79991234567", want: "+79991234567"},
		{name: "formatted ru", raw: "+7 (999) 123-45-67", want: "+79991234567"},
		{name: "trunk prefix", raw: "89991234567", want: "+79991234567"},
		{name: "bare mobile", raw: "9991234567", want: "+79991234567"},
		{name: "foreign number", raw: "+1 650 253 0000", want: "+16502530000"},
		{name: "whitespace and dots", raw: " 8 999.123.45.67 ", want: "+79991234567"},
		{name: "no digits", raw: "call me", wantErr: true},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "too long", raw: "1234567890123456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsStable(t *testing.T) {
	// Normalizing an already-normalized number must be a no-op; intake and
	// callback paths both normalize and must land on the same key.
	first, err := Normalize("8 (912) 000-11-22")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := Normalize(first)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if first != second {
		t.Errorf("normalization not stable: %q then %q", first, second)
	}
}
