// Package qrbill parses the payload of a Swiss QR-bill (version 2.x of the
// payment standard). The payload is a fixed-order list of lines; address
// blocks come in a structured 7-line form ("S"), a combined 4-line form ("K")
// or as 7 empty lines when unused.
package qrbill

import (
	"fmt"
	"strings"
)

// Address is one party block. For combined ("K") addresses Street holds
// address line 1 and City holds address line 2.
type Address struct {
	Type     string
	Name     string
	Street   string
	HouseNo  string
	Postcode string
	City     string
	Country  string
}

// Bill is the parsed QR payload.
type Bill struct {
	Header  string
	Version string
	Coding  string

	CreditorIBAN     string
	Creditor         Address
	UltimateCreditor Address

	Amount   string
	Currency string

	Debtor Address

	ReferenceType string
	Reference     string

	UnstructuredMessage string
	BillInformation     string

	Trailer string
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) next() (string, error) {
	if p.pos >= len(p.lines) {
		return "", fmt.Errorf("qrbill: payload truncated at line %d", p.pos+1)
	}
	line := p.lines[p.pos]
	p.pos++
	return line, nil
}

func (p *parser) take(n int) ([]string, error) {
	out := make([]string, n)
	for i := range out {
		line, err := p.next()
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}

// address consumes one address block: empty blocks span 7 lines, "S" blocks
// 7 lines, "K" blocks 4.
func (p *parser) address() (Address, error) {
	kind, err := p.next()
	if err != nil {
		return Address{}, err
	}
	switch strings.TrimSpace(kind) {
	case "":
		if _, err := p.take(6); err != nil {
			return Address{}, err
		}
		return Address{}, nil
	case "S":
		rest, err := p.take(6)
		if err != nil {
			return Address{}, err
		}
		return Address{
			Type:     "S",
			Name:     rest[0],
			Street:   rest[1],
			HouseNo:  rest[2],
			Postcode: rest[3],
			City:     rest[4],
			Country:  rest[5],
		}, nil
	case "K":
		rest, err := p.take(3)
		if err != nil {
			return Address{}, err
		}
		return Address{
			Type:   "K",
			Name:   rest[0],
			Street: rest[1],
			City:   rest[2],
		}, nil
	default:
		return Address{}, fmt.Errorf("qrbill: unknown address type %q at line %d", kind, p.pos)
	}
}

// Parse decodes the raw QR payload text.
func Parse(raw string) (*Bill, error) {
	p := &parser{lines: strings.Split(strings.TrimSpace(raw), "\n")}
	for i, line := range p.lines {
		p.lines[i] = strings.TrimRight(line, "\r")
	}

	bill := &Bill{}
	header, err := p.take(3)
	if err != nil {
		return nil, err
	}
	bill.Header, bill.Version, bill.Coding = header[0], header[1], header[2]

	if bill.CreditorIBAN, err = p.next(); err != nil {
		return nil, err
	}
	if bill.Creditor, err = p.address(); err != nil {
		return nil, err
	}
	if bill.UltimateCreditor, err = p.address(); err != nil {
		return nil, err
	}

	payment, err := p.take(2)
	if err != nil {
		return nil, err
	}
	bill.Amount, bill.Currency = payment[0], payment[1]

	if bill.Debtor, err = p.address(); err != nil {
		return nil, err
	}

	ref, err := p.take(2)
	if err != nil {
		return nil, err
	}
	bill.ReferenceType, bill.Reference = ref[0], ref[1]

	additional, err := p.next()
	if err != nil {
		return nil, err
	}
	// Structured bill information opens with the //S1/ tag; anything else is
	// a free-form message.
	if strings.HasPrefix(additional, "//S1/") {
		bill.BillInformation = additional
	} else {
		bill.UnstructuredMessage = additional
	}

	if bill.Trailer, err = p.next(); err != nil {
		return nil, err
	}
	return bill, nil
}

// Fields flattens the bill into the logical field names extensions map onto
// datapoints.
func (b *Bill) Fields() map[string]string {
	out := map[string]string{
		"header":  b.Header,
		"version": b.Version,
		"coding":  b.Coding,

		"creditor_iban": b.CreditorIBAN,

		"amount":   b.Amount,
		"currency": b.Currency,

		"reference_type": b.ReferenceType,
		"reference":      b.Reference,

		"unstructured_message": b.UnstructuredMessage,
		"bill_information":     b.BillInformation,

		"trailer": b.Trailer,
	}
	addAddress := func(prefix string, a Address) {
		out[prefix+"_address_type"] = a.Type
		out[prefix+"_name"] = a.Name
		out[prefix+"_street"] = a.Street
		out[prefix+"_house_no"] = a.HouseNo
		out[prefix+"_postcode"] = a.Postcode
		out[prefix+"_city"] = a.City
		out[prefix+"_country"] = a.Country
	}
	addAddress("creditor", b.Creditor)
	addAddress("ultimate_creditor", b.UltimateCreditor)
	addAddress("debtor", b.Debtor)
	return out
}
