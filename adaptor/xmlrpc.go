package adaptor

// xmlrpc.go parses XMLRPC method responses into a flat ordered table.  The
// parser is a strict state machine over the xml token stream: any tag that
// is not legal in the current state aborts the parse and the caller gets
// nothing back - a partially decoded reply is worse than none for the
// scripting layer.
//
// Accepted shape:
//
//	<methodResponse><params>
//	  <param><value>…</value></param>…
//	</params></methodResponse>
//
// where each value is either a <struct> of <member><name>…</name>
// <value>scalar</value></member> pairs or a scalar (<string>, <int>/<i4>).
// An untyped <value>text</value> decodes as a string.  Text inside value
// tags is whitespace-trimmed.
//
// © 2025 kvstorage authors. MIT License.

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// parser states
type xrState int

const (
	xrStart         xrState = iota // expect <methodResponse>
	xrParams                       // expect <params>
	xrParam                        // expect <param> or </params>
	xrValue                        // expect <value>
	xrContent                      // inside top-level <value>
	xrScalar                       // inside a scalar tag
	xrMember                       // expect <member> or </struct>
	xrName                         // expect <name>
	xrMemberValue                  // expect <value> inside member
	xrMemberContent                // inside member <value>
)

// ParseXMLRPCReply decodes a methodResponse document.  Each entry of the
// returned table is either a map[string]any (a struct of scalars) or a
// scalar (string or int64).  A structural violation aborts parsing and
// returns (nil, false).
func ParseXMLRPCReply(doc []byte) ([]any, bool) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var (
		state   = xrStart
		result  []any
		cur     map[string]any // struct under construction, nil outside one
		curName string
		text    strings.Builder
		scalar  string // scalar tag currently open
		emitted bool   // the enclosing <value> already produced its entry
		done    bool   // </methodResponse> seen
	)

	decodeScalar := func(tag, raw string) (any, bool) {
		v := strings.TrimSpace(raw)
		switch tag {
		case "int", "i4":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, false
			}
			return n, true
		default:
			return v, true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch state {
			case xrStart:
				if name != "methodResponse" || done {
					return nil, false
				}
				state = xrParams
			case xrParams:
				if name != "params" {
					return nil, false
				}
				state = xrParam
			case xrParam:
				if name != "param" {
					return nil, false
				}
				state = xrValue
			case xrValue:
				if name != "value" {
					return nil, false
				}
				state = xrContent
				text.Reset()
				emitted = false
			case xrContent:
				switch name {
				case "struct":
					cur = make(map[string]any)
					state = xrMember
				case "string", "int", "i4":
					scalar = name
					state = xrScalar
					text.Reset()
				default:
					return nil, false
				}
			case xrMember:
				if name != "member" {
					return nil, false
				}
				state = xrName
			case xrName:
				if name != "name" {
					return nil, false
				}
				text.Reset()
			case xrMemberValue:
				if name != "value" {
					return nil, false
				}
				state = xrMemberContent
				text.Reset()
				emitted = false
			case xrMemberContent:
				switch name {
				case "string", "int", "i4":
					scalar = name
					state = xrScalar
					text.Reset()
				default:
					return nil, false
				}
			default:
				return nil, false
			}

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			name := t.Name.Local
			switch name {
			case "name":
				if state != xrName {
					return nil, false
				}
				curName = strings.TrimSpace(text.String())
				text.Reset()
				state = xrMemberValue
			case "string", "int", "i4":
				if state != xrScalar || name != scalar {
					return nil, false
				}
				v, ok := decodeScalar(scalar, text.String())
				if !ok {
					return nil, false
				}
				if cur != nil {
					cur[curName] = v
					state = xrMemberContent
				} else {
					result = append(result, v)
					state = xrContent
				}
				scalar = ""
				emitted = true
				text.Reset()
			case "value":
				switch state {
				case xrContent:
					if !emitted {
						result = append(result, strings.TrimSpace(text.String()))
					}
					text.Reset()
					state = xrValue
				case xrMemberContent:
					if !emitted {
						cur[curName] = strings.TrimSpace(text.String())
					}
					text.Reset()
					state = xrMember
				default:
					return nil, false
				}
			case "struct":
				if state != xrMember || cur == nil {
					return nil, false
				}
				result = append(result, cur)
				cur = nil
				emitted = true
				state = xrContent
			case "member":
				if state != xrMember {
					return nil, false
				}
			case "param":
				if state != xrValue {
					return nil, false
				}
				state = xrParam
			case "params":
				if state != xrParam {
					return nil, false
				}
				state = xrStart
			case "methodResponse":
				if state != xrStart {
					return nil, false
				}
				done = true
			default:
				return nil, false
			}
		}
	}
	if !done {
		return nil, false
	}
	return result, true
}
