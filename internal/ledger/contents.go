package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiwari-pos/orderledger/internal/apperr"
)

type contentItem struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// EncodeContents renders c as a JSON array of {"name","qty"} objects sorted by
// name, so equal contents always produce the same text.
func EncodeContents(c Contents) string {
	items := make([]contentItem, 0, len(c))
	for _, name := range c.Names() {
		items = append(items, contentItem{Name: name, Qty: c[name]})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		// Strings and ints always marshal.
		panic(fmt.Sprintf("encode contents: %v", err))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// DecodeContents parses a Contents field. Besides the JSON form written by
// EncodeContents it accepts the older literal form, e.g. [{'Pizza': 2}, {'Soda': 1}].
func DecodeContents(s string) (Contents, error) {
	trimmed := strings.TrimSpace(s)
	if json.Valid([]byte(trimmed)) {
		c, err := decodeJSONContents(trimmed)
		if err == nil {
			return c, nil
		}
		// [{"Chef's Special": 1}] is valid JSON but still the literal form.
		if lc, lerr := decodeLegacyContents(trimmed); lerr == nil {
			return lc, nil
		}
		return nil, err
	}
	c, err := decodeLegacyContents(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: contents %q: %v", apperr.ErrMalformedRecord, s, err)
	}
	return c, nil
}

func decodeJSONContents(s string) (Contents, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()

	var items []contentItem
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: contents: %v", apperr.ErrMalformedRecord, err)
	}
	c := make(Contents, len(items))
	for _, it := range items {
		if err := c.put(it.Name, it.Qty); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: contents: %v", apperr.ErrMalformedRecord, err)
	}
	return c, nil
}

func (c Contents) put(name string, qty int) error {
	if _, dup := c[name]; dup {
		return fmt.Errorf("%w: contents: duplicate item %q", apperr.ErrMalformedRecord, name)
	}
	c[name] = qty
	return nil
}

// legacyParser reads the list-of-single-entry-dicts literal the first version of
// the ledger wrote. A bare dict literal is accepted too.
type legacyParser struct {
	s   string
	pos int
}

func decodeLegacyContents(s string) (Contents, error) {
	p := &legacyParser{s: s}
	c := make(Contents)

	p.skipSpace()
	switch p.peek() {
	case '[':
		p.pos++
		p.skipSpace()
		if p.peek() == ']' {
			p.pos++
			break
		}
		for {
			if err := p.dict(c); err != nil {
				return nil, err
			}
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				p.skipSpace()
				continue
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			break
		}
	case '{':
		if err := p.dict(c); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf("expected '[' or '{'")
	}

	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing data")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *legacyParser) dict(c Contents) error {
	if err := p.expect('{'); err != nil {
		return err
	}
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return nil
	}
	for {
		p.skipSpace()
		name, err := p.str()
		if err != nil {
			return err
		}
		p.skipSpace()
		if err := p.expect(':'); err != nil {
			return err
		}
		p.skipSpace()
		qty, err := p.integer()
		if err != nil {
			return err
		}
		if err := c.put(name, qty); err != nil {
			return err
		}
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		return p.expect('}')
	}
}

func (p *legacyParser) str() (string, error) {
	q := p.peek()
	if q != '\'' && q != '"' {
		return "", p.errorf("expected quoted name")
	}
	p.pos++

	var b strings.Builder
	for p.pos < len(p.s) {
		ch := p.s[p.pos]
		switch {
		case ch == q:
			p.pos++
			return b.String(), nil
		case ch == '\\':
			if p.pos+1 >= len(p.s) {
				return "", p.errorf("unterminated escape")
			}
			p.pos++
			switch e := p.s[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				return "", p.errorf("unsupported escape \\%c", e)
			}
		default:
			b.WriteByte(ch)
		}
		p.pos++
	}
	return "", p.errorf("unterminated string")
}

func (p *legacyParser) integer() (int, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected quantity")
	}
	return strconv.Atoi(p.s[start:p.pos])
}

func (p *legacyParser) expect(ch byte) error {
	if p.peek() != ch {
		return p.errorf("expected %q", ch)
	}
	p.pos++
	return nil
}

func (p *legacyParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *legacyParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *legacyParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}
