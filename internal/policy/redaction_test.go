package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Escribime a sam@example.com o al +54 (11) 5555-1234 y pagá con 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "sam@example.com") {
		t.Fatalf("email leaked: %q", out)
	}
}

func TestRedactArgentineIDs(t *testing.T) {
	out, _ := RedactPII("Mi CUIT es 20-12345678-9 y mi DNI 12.345.678")
	if !strings.Contains(out, "[REDACTED_CUIT]") || !strings.Contains(out, "[REDACTED_DNI]") {
		t.Fatalf("ids not redacted: %q", out)
	}
}

func TestRedactLeavesPlainTextAlone(t *testing.T) {
	in := "Dale, te agendo el martes a las 10."
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v", in, out, changed)
	}
}
