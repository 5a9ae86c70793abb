package layout

import (
	"bufio"
	"io"
	"math"
	"strconv"
)

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n (apply m, then n).
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitSquare maps the image space unit square through m.
func (m matrix) unitSquare() BBox {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.apply(0, 0)
	xs[1], ys[1] = m.apply(1, 0)
	xs[2], ys[2] = m.apply(0, 1)
	xs[3], ys[3] = m.apply(1, 1)
	b := BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	for i := range xs {
		b.X0 = math.Min(b.X0, xs[i])
		b.Y0 = math.Min(b.Y0, ys[i])
		b.X1 = math.Max(b.X1, xs[i])
		b.Y1 = math.Max(b.Y1, ys[i])
	}
	return b
}

// Placement is one "Do" of a named XObject with the CTM in effect.
type Placement struct {
	Name string
	BBox BBox
}

// ScanPlacements walks a page content stream and returns where each XObject
// is drawn. Only q, Q, cm and Do are interpreted; text and path operators are
// skipped. Inline images (BI..EI) are skipped as well.
func ScanPlacements(r io.Reader) ([]Placement, error) {
	s := newScanner(r)
	ctm := identity
	var stack []matrix
	var operands []string
	var out []Placement

	for {
		tok, err := s.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if tok.operand {
			operands = append(operands, tok.text)
			continue
		}
		switch tok.text {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if n := len(stack); n > 0 {
				ctm = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if m, ok := parseMatrix(operands); ok {
				ctm = m.mul(ctm)
			}
		case "Do":
			if n := len(operands); n > 0 && len(operands[n-1]) > 1 && operands[n-1][0] == '/' {
				out = append(out, Placement{Name: operands[n-1][1:], BBox: ctm.unitSquare()})
			}
		case "BI":
			if err := s.skipInlineImage(); err != nil {
				return out, err
			}
		}
		operands = operands[:0]
	}
}

func parseMatrix(ops []string) (matrix, bool) {
	if len(ops) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i, s := range ops[len(ops)-6:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

type token struct {
	text    string
	operand bool
}

type scanner struct {
	r *bufio.Reader
}

func newScanner(r io.Reader) *scanner { return &scanner{r: bufio.NewReader(r)} }

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *scanner) next() (token, error) {
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return token{}, err
		}
		switch {
		case isSpace(c):
			continue
		case c == '%':
			if _, err := s.r.ReadString('\n'); err != nil {
				return token{}, err
			}
			continue
		case c == '(':
			return token{text: "()", operand: true}, s.skipString()
		case c == '<':
			n, err := s.r.Peek(1)
			if err == nil && n[0] == '<' {
				_, _ = s.r.ReadByte()
				return token{text: "<<", operand: true}, s.skipDict()
			}
			return token{text: "<>", operand: true}, s.skipUntil('>')
		case c == '[':
			return token{text: "[", operand: true}, nil
		case c == ']':
			return token{text: "]", operand: true}, nil
		case c == '/':
			word, err := s.word()
			return token{text: "/" + word, operand: true}, err
		default:
			_ = s.r.UnreadByte()
			word, err := s.word()
			if err != nil && word == "" {
				return token{}, err
			}
			if word == "" {
				// stray delimiter such as ')' or '}'
				_, _ = s.r.ReadByte()
				continue
			}
			if _, perr := strconv.ParseFloat(word, 64); perr == nil {
				return token{text: word, operand: true}, nil
			}
			if word == "true" || word == "false" || word == "null" {
				return token{text: word, operand: true}, nil
			}
			return token{text: word}, nil
		}
	}
}

func (s *scanner) word() (string, error) {
	var buf []byte
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return string(buf), err
		}
		if isSpace(c) || isDelim(c) {
			_ = s.r.UnreadByte()
			return string(buf), nil
		}
		buf = append(buf, c)
	}
}

func (s *scanner) skipString() error {
	depth := 1
	for depth > 0 {
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		switch c {
		case '\\':
			if _, err := s.r.ReadByte(); err != nil {
				return err
			}
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return nil
}

func (s *scanner) skipUntil(end byte) error {
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if c == end {
			return nil
		}
	}
}

func (s *scanner) skipDict() error {
	depth := 1
	var prev byte
	for depth > 0 {
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case c == '(':
			if err := s.skipString(); err != nil {
				return err
			}
			c = 0
		case prev == '<' && c == '<':
			depth++
			c = 0
		case prev == '>' && c == '>':
			depth--
			c = 0
		}
		prev = c
	}
	return nil
}

// skipInlineImage consumes everything up to and including the EI operator.
func (s *scanner) skipInlineImage() error {
	var window [3]byte
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		window[0], window[1], window[2] = window[1], window[2], c
		if isSpace(window[0]) && window[1] == 'E' && window[2] == 'I' {
			n, err := s.r.Peek(1)
			if err == io.EOF || (err == nil && (isSpace(n[0]) || isDelim(n[0]))) {
				return nil
			}
		}
	}
}
