package domain

import "testing"

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Belo Horizonte", "BELO HORIZONTE"},
		{"  belo   horizonte  ", "BELO HORIZONTE"},
		{"SÃO PAULO", "SÃO PAULO"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		if got := Canonical(tc.in); got != tc.want {
			t.Errorf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlaceKeyIgnoresCaseAndSpacing(t *testing.T) {
	a := PlaceKey("Belo Horizonte")
	b := PlaceKey("  belo   HORIZONTE ")
	if a != b {
		t.Errorf("keys differ for equivalent names: %s vs %s", a, b)
	}

	if PlaceKey("Uberlândia") == a {
		t.Error("distinct names produced the same key")
	}
}

func TestPairKeyIsOrderIndependent(t *testing.T) {
	ab := PairKey("Belo Horizonte", "Uberlândia")
	ba := PairKey("uberlândia", "belo horizonte")
	if ab != ba {
		t.Errorf("PairKey not symmetric: %s vs %s", ab, ba)
	}

	other := PairKey("Belo Horizonte", "Contagem")
	if other == ab {
		t.Error("distinct pairs produced the same key")
	}
}
