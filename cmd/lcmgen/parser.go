// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports an unexpected token or grammar violation.
type ParseError struct {
	Line, Column int
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: parse error: %s", e.Line, e.Column, e.Message)
}

// integerConstTypes is the set of const primitive types usable as array
// dimension references (spec.md §4.2's "previously parsed const of
// integer type").
var integerConstTypes = map[string]bool{
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true, "byte": true,
}

// Parser is a recursive-descent parser over a token stream, mirroring the
// teacher's convertFunction/convertFunctionParameters descent over the C
// AST: one method per grammar production.
type Parser struct {
	lex     *Lexer
	path    string
	cur     Token
	lookhd  *Token
	pkgName string
}

// NewParser constructs a Parser over src, reporting path in error
// messages (unused by ParseError itself but kept for caller diagnostics).
func NewParser(src, path string) *Parser {
	return &Parser{lex: NewLexer(src), path: path}
}

func (p *Parser) advance() error {
	if p.lookhd != nil {
		p.cur = *p.lookhd
		p.lookhd = nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) peek() (Token, error) {
	if p.lookhd == nil {
		t, err := p.lex.Next()
		if err != nil {
			return Token{}, err
		}
		p.lookhd = &t
	}
	return *p.lookhd, nil
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, &ParseError{Line: p.cur.Line, Column: p.cur.Column,
			Message: fmt.Sprintf("expected %s, got %q", what, p.cur.Text)}
	}
	t := p.cur
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// ParseFile parses a complete `.lcm` source file into a File AST.
func ParseFile(src, path string) (*File, error) {
	p := NewParser(src, path)
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseFile()
}

func (p *Parser) parseFile() (*File, error) {
	f := &File{Path: p.path}
	if p.cur.Kind == TokPackage {
		pkg, err := p.parsePackage()
		if err != nil {
			return nil, err
		}
		f.Package = pkg
		p.pkgName = pkg
	}
	for p.cur.Kind == TokStruct {
		s, err := p.parseStruct()
		if err != nil {
			return nil, err
		}
		f.Structs = append(f.Structs, s)
	}
	if p.cur.Kind != TokEOF {
		return nil, &ParseError{Line: p.cur.Line, Column: p.cur.Column,
			Message: fmt.Sprintf("unexpected token %q at top level", p.cur.Text)}
	}
	return f, nil
}

func (p *Parser) parsePackage() (string, error) {
	if _, err := p.expect(TokPackage, "'package'"); err != nil {
		return "", err
	}
	first, err := p.expect(TokIdent, "package name"); if err != nil {
		return "", err
	}
	parts := []string{first.Text}
	for p.cur.Kind == TokDot {
		if err := p.advance(); err != nil {
			return "", err
		}
		seg, err := p.expect(TokIdent, "package name segment")
		if err != nil {
			return "", err
		}
		parts = append(parts, seg.Text)
	}
	if _, err := p.expect(TokSemicolon, "';'"); err != nil {
		return "", err
	}
	return strings.Join(parts, "."), nil
}

func (p *Parser) parseStruct() (*Struct, error) {
	doc := p.cur.Doc
	if _, err := p.expect(TokStruct, "'struct'"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	s := &Struct{Name: name.Text, Package: p.pkgName, Doc: doc}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	constByName := map[string]string{} // name -> primitive type, for dim resolution
	constIntValue := map[string]int{}  // name -> resolved value, for integer consts only
	memberNames := map[string]bool{}
	for p.cur.Kind != TokRBrace {
		if p.cur.Kind == TokConst {
			consts, err := p.parseConst()
			if err != nil {
				return nil, err
			}
			for _, c := range consts {
				constByName[c.Name] = c.Type
				if integerConstTypes[c.Type] {
					if n, err := parseIntLiteral(c.Value); err == nil {
						constIntValue[c.Name] = n
					}
				}
			}
			s.Constants = append(s.Constants, consts...)
			continue
		}
		m, err := p.parseMember(constByName, constIntValue, memberNames)
		if err != nil {
			return nil, err
		}
		memberNames[m.Name] = true
		s.Members = append(s.Members, m)
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) parseConst() ([]*Constant, error) {
	if _, err := p.expect(TokConst, "'const'"); err != nil {
		return nil, err
	}
	typeTok, err := p.expect(TokIdent, "const type")
	if err != nil {
		return nil, err
	}
	var consts []*Constant
	for {
		name, err := p.expect(TokIdent, "const name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokEquals, "'='"); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		consts = append(consts, &Constant{Type: typeTok.Text, Name: name.Text, Value: lit})
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return consts, nil
}

// parseIntLiteral parses a decimal or 0x-prefixed hex integer literal as
// written in the source (spec.md §4.1 hex literal handling).
func parseIntLiteral(text string) (int, error) {
	neg := false
	if strings.HasPrefix(text, "-") {
		neg = true
		text = text[1:]
	}
	var n int64
	var err error
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		n, err = strconv.ParseInt(text[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(text, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return int(n), nil
}

func (p *Parser) parseLiteral() (string, error) {
	switch p.cur.Kind {
	case TokInt, TokHex, TokFloat:
		t := p.cur.Text
		if err := p.advance(); err != nil {
			return "", err
		}
		return t, nil
	default:
		return "", &ParseError{Line: p.cur.Line, Column: p.cur.Column,
			Message: fmt.Sprintf("expected literal, got %q", p.cur.Text)}
	}
}

func (p *Parser) parseMember(constByName map[string]string, constIntValue map[string]int, memberNames map[string]bool) (*Member, error) {
	typeRef, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent, "member name")
	if err != nil {
		return nil, err
	}
	var dims []ArrayDim
	for p.cur.Kind == TokLBracket {
		dim, err := p.parseArrayDim(constByName, constIntValue, memberNames)
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}
	if _, err := p.expect(TokSemicolon, "';'"); err != nil {
		return nil, err
	}
	return &Member{Type: typeRef, Name: name.Text, Dims: dims}, nil
}

func (p *Parser) parseTypeRef() (TypeRef, error) {
	first, err := p.expect(TokIdent, "type name")
	if err != nil {
		return TypeRef{}, err
	}
	parts := []string{first.Text}
	for p.cur.Kind == TokDot {
		if err := p.advance(); err != nil {
			return TypeRef{}, err
		}
		seg, err := p.expect(TokIdent, "type name segment")
		if err != nil {
			return TypeRef{}, err
		}
		parts = append(parts, seg.Text)
	}
	return newTypeRef(p.pkgName, parts), nil
}

// parseArrayDim resolves one `[...]` per spec.md §4.2: a literal integer
// is a constant dimension; an identifier matching a previously parsed
// integer const is a constant dimension with that value; an identifier
// matching a previously declared member is a variable dimension; any
// other identifier is kept as a symbolic constant for fingerprinting.
func (p *Parser) parseArrayDim(constByName map[string]string, constIntValue map[string]int, memberNames map[string]bool) (ArrayDim, error) {
	if _, err := p.expect(TokLBracket, "'['"); err != nil {
		return ArrayDim{}, err
	}
	var dim ArrayDim
	switch p.cur.Kind {
	case TokInt:
		text := p.cur.Text
		if err := p.advance(); err != nil {
			return ArrayDim{}, err
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return ArrayDim{}, &ParseError{Line: p.cur.Line, Column: p.cur.Column,
				Message: fmt.Sprintf("invalid array size %q", text)}
		}
		dim = ArrayDim{Kind: DimConst, Expr: text, Resolved: n}
	case TokIdent:
		ident := p.cur.Text
		if err := p.advance(); err != nil {
			return ArrayDim{}, err
		}
		switch {
		case constByName[ident] != "":
			dim = ArrayDim{Kind: DimConst, Expr: ident, Resolved: constIntValue[ident]}
		case memberNames[ident]:
			dim = ArrayDim{Kind: DimVar, Expr: ident, RefMember: ident}
		default:
			// symbolic constant: kept for fingerprint parity even though
			// it resolves to neither a const nor a member (spec.md §9
			// Open Question).
			dim = ArrayDim{Kind: DimConst, Expr: ident}
		}
	default:
		return ArrayDim{}, &ParseError{Line: p.cur.Line, Column: p.cur.Column,
			Message: fmt.Sprintf("expected array size, got %q", p.cur.Text)}
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return ArrayDim{}, err
	}
	return dim, nil
}
