// Package pdf emits the one document structure the exporter needs: a page
// per source raster with an image background, a shared Helvetica font, a
// transparent-fill graphics state and per-page content streams.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is one serializable PDF object.
type Object interface {
	writeTo(buf *bytes.Buffer)
}

type Name string

func (n Name) writeTo(buf *bytes.Buffer) {
	buf.WriteByte('/')
	buf.WriteString(string(n))
}

type Integer int64

func (i Integer) writeTo(buf *bytes.Buffer) {
	buf.WriteString(strconv.FormatInt(int64(i), 10))
}

type Real float64

func (r Real) writeTo(buf *bytes.Buffer) {
	buf.WriteString(FormatReal(float64(r)))
}

// FormatReal renders a number without an exponent, trimming trailing zeros.
// PDF real syntax forbids scientific notation.
func FormatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

type Boolean bool

func (b Boolean) writeTo(buf *bytes.Buffer) {
	if b {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
}

// String is a literal string object. Parentheses and backslashes are escaped
// on write.
type String []byte

func (s String) writeTo(buf *bytes.Buffer) {
	buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

type Array []Object

func (a Array) writeTo(buf *bytes.Buffer) {
	buf.WriteByte('[')
	for i, item := range a {
		if i > 0 {
			buf.WriteByte(' ')
		}
		item.writeTo(buf)
	}
	buf.WriteByte(']')
}

// Dict serializes with sorted keys so output is deterministic.
type Dict map[Name]Object

func (d Dict) writeTo(buf *bytes.Buffer) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteByte('/')
		buf.WriteString(k)
		buf.WriteByte(' ')
		d[Name(k)].writeTo(buf)
	}
	buf.WriteString(">>")
}

// Ref is an indirect object reference.
type Ref struct{ Num, Gen int }

func (r Ref) writeTo(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "%d %d R", r.Num, r.Gen)
}

// Stream couples a dictionary with raw (already filtered) data. Length is
// filled in on write.
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) writeTo(buf *bytes.Buffer) {
	d := Dict{}
	for k, v := range s.Dict {
		d[k] = v
	}
	d["Length"] = Integer(len(s.Data))
	d.writeTo(buf)
	buf.WriteString("\nstream\n")
	buf.Write(s.Data)
	buf.WriteString("\nendstream")
}
