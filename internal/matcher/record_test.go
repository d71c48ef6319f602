package matcher_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"strinks/internal/matcher"
	"strinks/internal/services"
)

func TestRecordCleanTrimsFields(t *testing.T) {
	rec, err := matcher.Record{Name: "  Punk   IPA ", Brewery: " BrewDog\t", Shop: " beerzilla "}.Clean()
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if rec.Name != "Punk IPA" || rec.Brewery != "BrewDog" || rec.Shop != "beerzilla" {
		t.Fatalf("unexpected cleaned record: %+v", rec)
	}
}

func TestRecordCleanReportsJSONFieldNames(t *testing.T) {
	_, err := matcher.Record{Name: "IPA", Brewery: strings.Repeat("x", 201)}.Clean()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "brewery") || !strings.Contains(err.Error(), "max") {
		t.Fatalf("expected field and rule in message, got %q", err.Error())
	}
}

func TestRecordFingerprintIsPure(t *testing.T) {
	a := matcher.Record{Name: "Ｐｕｎｋ ＩＰＡ", Brewery: "BrewDog"}
	b := matcher.Record{Name: "punk ipa", Brewery: " BREWDOG "}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("fingerprints differ: %q vs %q", a.Fingerprint(), b.Fingerprint())
	}
	if a.Fingerprint() != "punk ipa|brewdog" {
		t.Fatalf("unexpected fingerprint %q", a.Fingerprint())
	}
}

func TestRecordPassesOpaqueFieldsThrough(t *testing.T) {
	var rec matcher.Record
	input := `{"name":"Gose","brewery":"Example","price":{"amount":480,"currency":"JPY"},"volume":"350ml","shop":"ichigo"}`
	if err := json.Unmarshal([]byte(input), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"price":{"amount":480,"currency":"JPY"}`) || !strings.Contains(string(out), `"volume":"350ml"`) {
		t.Fatalf("expected price and volume unchanged, got %s", out)
	}
}
