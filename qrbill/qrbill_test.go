package qrbill

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Structured creditor, empty ultimate creditor, combined debtor, QRR
// reference, unstructured message.
const samplePayload = `SPC
0200
1
CH4431999123000889012
S
Max Muster & Söhne
Musterstrasse
123
8000
Seldwyla
CH







199.95
CHF
K
Simon Muster
Musterstrasse 1
8000 Seldwyla
QRR
210000000003139471430009017
Bestellung vom 15.10.2020
EPD`

func TestParseStructuredAndCombinedAddresses(t *testing.T) {
	bill, err := Parse(samplePayload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if bill.Header != "SPC" || bill.Version != "0200" || bill.Coding != "1" {
		t.Fatalf("header = %q %q %q", bill.Header, bill.Version, bill.Coding)
	}
	if bill.CreditorIBAN != "CH4431999123000889012" {
		t.Fatalf("iban = %q", bill.CreditorIBAN)
	}

	wantCreditor := Address{
		Type: "S", Name: "Max Muster & Söhne", Street: "Musterstrasse",
		HouseNo: "123", Postcode: "8000", City: "Seldwyla", Country: "CH",
	}
	if diff := cmp.Diff(wantCreditor, bill.Creditor); diff != "" {
		t.Fatalf("creditor mismatch (-want +got):\n%s", diff)
	}
	if bill.UltimateCreditor != (Address{}) {
		t.Fatalf("ultimate creditor = %+v, want empty", bill.UltimateCreditor)
	}
	wantDebtor := Address{
		Type: "K", Name: "Simon Muster", Street: "Musterstrasse 1", City: "8000 Seldwyla",
	}
	if diff := cmp.Diff(wantDebtor, bill.Debtor); diff != "" {
		t.Fatalf("debtor mismatch (-want +got):\n%s", diff)
	}

	if bill.Amount != "199.95" || bill.Currency != "CHF" {
		t.Fatalf("payment = %q %q", bill.Amount, bill.Currency)
	}
	if bill.ReferenceType != "QRR" {
		t.Fatalf("reference type = %q", bill.ReferenceType)
	}
	if bill.Reference != "210000000003139471430009017" {
		t.Fatalf("reference = %q", bill.Reference)
	}
	if bill.UnstructuredMessage != "Bestellung vom 15.10.2020" {
		t.Fatalf("unstructured message = %q", bill.UnstructuredMessage)
	}
	if bill.Trailer != "EPD" {
		t.Fatalf("trailer = %q", bill.Trailer)
	}
}

func TestParseBillInformation(t *testing.T) {
	payload := strings.Replace(samplePayload,
		"Bestellung vom 15.10.2020",
		"//S1/10/10201409/11/200701", 1)
	bill, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bill.BillInformation != "//S1/10/10201409/11/200701" {
		t.Fatalf("bill information = %q", bill.BillInformation)
	}
	if bill.UnstructuredMessage != "" {
		t.Fatalf("unstructured message = %q, want empty", bill.UnstructuredMessage)
	}
}

func TestParseTruncatedPayload(t *testing.T) {
	if _, err := Parse("SPC\n0200\n1"); err == nil {
		t.Fatal("expected truncation error")
	}
	if _, err := Parse(""); err == nil {
		t.Fatal("expected truncation error for empty payload")
	}
}

func TestParseUnknownAddressType(t *testing.T) {
	payload := strings.Replace(samplePayload, "\nS\n", "\nX\n", 1)
	_, err := Parse(payload)
	if err == nil || !strings.Contains(err.Error(), "unknown address type") {
		t.Fatalf("err = %v, want unknown address type", err)
	}
}

func TestParseCRLF(t *testing.T) {
	bill, err := Parse(strings.ReplaceAll(samplePayload, "\n", "\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if bill.CreditorIBAN != "CH4431999123000889012" {
		t.Fatalf("iban = %q", bill.CreditorIBAN)
	}
}

func TestFields(t *testing.T) {
	bill, err := Parse(samplePayload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fields := bill.Fields()
	checks := map[string]string{
		"creditor_iban":          "CH4431999123000889012",
		"creditor_name":          "Max Muster & Söhne",
		"creditor_address_type":  "S",
		"debtor_address_type":    "K",
		"debtor_city":            "8000 Seldwyla",
		"amount":                 "199.95",
		"currency":               "CHF",
		"reference_type":         "QRR",
		"ultimate_creditor_name": "",
		"trailer":                "EPD",
	}
	for key, want := range checks {
		if got, ok := fields[key]; !ok || got != want {
			t.Fatalf("fields[%q] = %q (present %v), want %q", key, got, ok, want)
		}
	}
}
