package pricing

import "testing"

func TestRoundPriceNearestHundred(t *testing.T) {
	rounded, err := RoundPrice(d("12345"), RoundPolicy{Kind: RoundNearestHundred})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12345 to nearest hundred", rounded, "12300")

	rounded, err = RoundPrice(d("12355"), RoundPolicy{Kind: RoundNearestHundred})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12355 to nearest hundred", rounded, "12400")
}

func TestRoundPriceNearestThousand(t *testing.T) {
	rounded, err := RoundPrice(d("12500"), RoundPolicy{Kind: RoundNearestThousand})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12500 to nearest thousand", rounded, "13000")

	rounded, err = RoundPrice(d("12499"), RoundPolicy{Kind: RoundNearestThousand})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12499 to nearest thousand", rounded, "12000")
}

func TestRoundPriceNearestMultiple(t *testing.T) {
	rounded, err := RoundPrice(d("12345"), NearestMultipleOf(d("500")))
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12345 to nearest 500", rounded, "12500")
}

func TestRoundPriceNoneRoundsToWholeUnit(t *testing.T) {
	rounded, err := RoundPrice(d("12345.67"), RoundPolicy{Kind: RoundNone})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "12345.67 to whole unit", rounded, "12346")

	// An unset policy behaves like RoundNone.
	rounded, err = RoundPrice(d("99.4"), RoundPolicy{})
	if err != nil {
		t.Fatalf("RoundPrice returned error: %v", err)
	}
	wantDecimal(t, "99.4 with empty policy", rounded, "99")
}

func TestRoundPriceRejectsBadPolicy(t *testing.T) {
	_, err := RoundPrice(d("100"), NearestMultipleOf(d("0")))
	wantErrIs(t, err, ErrInvalidInput)

	_, err = RoundPrice(d("100"), RoundPolicy{Kind: RoundKind("banker")})
	wantErrIs(t, err, ErrInvalidInput)
}
