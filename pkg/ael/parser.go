package ael

import (
	"fmt"
	"os"
	"strings"
)

const maxParseErrors = 20

// ParseError is a syntax error at a source position.
type ParseError struct {
	Pos Pos
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// ParseErrors collects every syntax error found in one file.
type ParseErrors []*ParseError

func (el ParseErrors) Error() string {
	if len(el) == 1 {
		return el[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d syntax errors:", len(el))
	for _, e := range el {
		b.WriteString("\n  ")
		b.WriteString(e.Error())
	}
	return b.String()
}

type parser struct {
	lex  *Lexer
	file string
	errs ParseErrors
}

// bail unwinds the parser once too many errors have been seen.
type bail struct{}

// ParseFile reads and parses a script file.
func ParseFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, string(data))
}

// Parse parses script source. On syntax errors the returned tree holds
// whatever parsed cleanly and the error is a ParseErrors.
func Parse(file, src string) (tree *Tree, err error) {
	p := &parser{lex: NewLexer(src), file: file}
	tree = &Tree{File: file}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bail); !ok {
				panic(r)
			}
		}
		tree.Index()
		if len(p.errs) > 0 {
			err = p.errs
		}
	}()
	for p.lex.Peek().Type != TokenEOF {
		if item := p.parseItem(); item != nil {
			tree.Items = append(tree.Items, item)
		}
	}
	return tree, nil
}

func (p *parser) pos(tok Token) Pos {
	return Pos{File: p.file, Line: tok.Line, Col: tok.Column, EndLine: tok.Line, EndCol: tok.Column}
}

func (p *parser) end(pos Pos) Pos {
	pos.EndLine = p.lex.Line()
	return pos
}

func (p *parser) errorf(tok Token, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{Pos: p.pos(tok), Msg: fmt.Sprintf(format, args...)})
	if len(p.errs) >= maxParseErrors {
		panic(bail{})
	}
}

// expect consumes the next token and reports an error unless it has type tt.
func (p *parser) expect(tt TokenType) (Token, bool) {
	tok := p.lex.Next()
	if tok.Type != tt {
		p.errorf(tok, "expected %s, got %s", tt, tok)
		return tok, false
	}
	return tok, true
}

// sync skips to the end of the current statement.
func (p *parser) sync() {
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenEOF, TokenRBrace:
			return
		case TokenSemicolon:
			p.lex.Next()
			return
		case TokenLBrace:
			p.lex.Next()
			p.skipBlock()
			return
		}
		p.lex.Next()
	}
}

// skipBlock consumes tokens up to the brace closing an already consumed '{'.
func (p *parser) skipBlock() {
	depth := 1
	for depth > 0 {
		switch p.lex.Next().Type {
		case TokenLBrace:
			depth++
		case TokenRBrace:
			depth--
		case TokenEOF:
			return
		}
	}
}

func (p *parser) name() (Token, bool) {
	tok := p.lex.Next()
	if tok.Type != TokenWord && tok.Type != TokenString {
		p.errorf(tok, "expected name, got %s", tok)
		return tok, false
	}
	return tok, true
}

func (p *parser) parseItem() Node {
	tok := p.lex.Next()
	if tok.Type != TokenWord {
		p.errorf(tok, "expected context, macro or globals, got %s", tok)
		p.sync()
		return nil
	}
	start := p.pos(tok)
	switch strings.ToLower(tok.Value) {
	case "globals":
		return p.parseGlobals(start)
	case "macro":
		return p.parseMacro(start)
	case "context", "abstract", "extend":
		var abstract, extend bool
		for {
			switch strings.ToLower(tok.Value) {
			case "abstract":
				abstract = true
			case "extend":
				extend = true
			case "context":
				ctx := p.parseContext(start)
				if ctx != nil {
					ctx.Abstract, ctx.Extend = abstract, extend
				}
				return ctx
			default:
				p.errorf(tok, "expected 'context', got %s", tok)
				p.sync()
				return nil
			}
			tok = p.lex.Next()
		}
	}
	p.errorf(tok, "expected context, macro or globals, got %s", tok)
	p.sync()
	return nil
}

func (p *parser) parseGlobals(start Pos) Node {
	g := &Globals{Pos: start}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Next()
		switch tok.Type {
		case TokenRBrace:
			g.Pos = p.end(g.Pos)
			return g
		case TokenEOF:
			p.errorf(tok, "unterminated globals block")
			return g
		case TokenWord, TokenString:
			if d := p.parseAssign(tok, false); d != nil {
				g.Vars = append(g.Vars, d.(*VarDecl))
			}
		default:
			p.errorf(tok, "expected variable assignment, got %s", tok)
			p.sync()
		}
	}
}

func (p *parser) parseMacro(start Pos) Node {
	name, ok := p.name()
	if !ok {
		p.sync()
		return nil
	}
	m := &Macro{Pos: start, Name: name.Value}
	if _, ok := p.expect(TokenLParen); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Next()
		if tok.Type == TokenRParen {
			break
		}
		if tok.Type == TokenComma {
			continue
		}
		if tok.Type != TokenWord {
			p.errorf(tok, "expected macro parameter, got %s", tok)
			p.sync()
			return nil
		}
		m.Params = append(m.Params, &Word{Pos: p.pos(tok), Value: tok.Value})
	}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	m.Body = p.parseStatements()
	p.expect(TokenRBrace)
	m.Pos = p.end(m.Pos)
	return m
}

func (p *parser) parseContext(start Pos) *Context {
	name, ok := p.name()
	if !ok {
		p.sync()
		return nil
	}
	ctx := &Context{Pos: start, Name: name.Value}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenRBrace:
			p.lex.Next()
			ctx.Pos = p.end(ctx.Pos)
			return ctx
		case TokenEOF:
			p.errorf(tok, "unterminated context %s", ctx.Name)
			return ctx
		}
		if item := p.parseContextItem(); item != nil {
			ctx.Items = append(ctx.Items, item)
		}
	}
}

func (p *parser) parseContextItem() Node {
	tok := p.lex.Next()
	start := p.pos(tok)
	if tok.Type != TokenWord && tok.Type != TokenString {
		p.errorf(tok, "expected extension or declaration, got %s", tok)
		p.sync()
		return nil
	}
	if tok.Type == TokenWord {
		switch strings.ToLower(tok.Value) {
		case "includes":
			return p.parseIncludes(start)
		case "ignorepat":
			if _, ok := p.expect(TokenArrow); !ok {
				p.sync()
				return nil
			}
			pat, _, _ := p.lex.ReadRaw(';')
			p.expect(TokenSemicolon)
			return &IgnorePat{Pos: p.end(start), Pattern: pat}
		case "switches", "eswitches":
			return p.parseSwitches(start, strings.EqualFold(tok.Value, "eswitches"))
		case "regexten", "hint":
			return p.parseExtension(start, tok)
		}
	}
	if next := p.lex.Peek(); next.Type == TokenArrow {
		return p.parseExtension(start, tok)
	}
	p.errorf(tok, "expected '=>' after extension %s", tok.Value)
	p.sync()
	return nil
}

func (p *parser) parseExtension(start Pos, tok Token) Node {
	ext := &Extension{Pos: start}
	for tok.Type == TokenWord {
		switch strings.ToLower(tok.Value) {
		case "regexten":
			ext.Regexten = true
			tok = p.lex.Next()
			continue
		case "hint":
			if p.lex.Peek().Type == TokenLParen {
				p.lex.Next()
				ext.Hint, _, _ = p.lex.ReadRaw(')')
				p.expect(TokenRParen)
				tok = p.lex.Next()
				continue
			}
		}
		break
	}
	if tok.Type != TokenWord && tok.Type != TokenString {
		p.errorf(tok, "expected extension name, got %s", tok)
		p.sync()
		return nil
	}
	ext.Name = tok.Value
	if _, ok := p.expect(TokenArrow); !ok {
		p.sync()
		return nil
	}
	if stmt := p.parseStatement(); stmt != nil {
		if b, ok := stmt.(*Block); ok {
			ext.Body = b.Body
		} else {
			ext.Body = []Node{stmt}
		}
	}
	ext.Pos = p.end(ext.Pos)
	return ext
}

func (p *parser) parseIncludes(start Pos) Node {
	inc := &Includes{Pos: start}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenRBrace:
			p.lex.Next()
			inc.Pos = p.end(inc.Pos)
			return inc
		case TokenEOF:
			p.errorf(tok, "unterminated includes block")
			return inc
		}
		raw, line, ok := p.lex.ReadRaw(';')
		if !ok {
			p.errorf(p.lex.Peek(), "expected ';' after include")
			p.sync()
			continue
		}
		p.lex.Next()
		entry := &Include{Pos: Pos{File: p.file, Line: line, EndLine: line}}
		fields := strings.Split(raw, "|")
		entry.Context = strings.Trim(strings.TrimSpace(fields[0]), `"`)
		if len(fields) > 1 {
			entry.Time = parseTimeFields(fields[1:])
		}
		inc.Entries = append(inc.Entries, entry)
	}
}

func (p *parser) parseSwitches(start Pos, eval bool) Node {
	sw := &Switches{Pos: start, Eval: eval}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Peek()
		switch tok.Type {
		case TokenRBrace:
			p.lex.Next()
			sw.Pos = p.end(sw.Pos)
			return sw
		case TokenEOF:
			p.errorf(tok, "unterminated switches block")
			return sw
		}
		raw, line, ok := p.lex.ReadRaw(';')
		if !ok {
			p.errorf(p.lex.Peek(), "expected ';' after switch")
			p.sync()
			continue
		}
		p.lex.Next()
		sw.Names = append(sw.Names, &Word{Pos: Pos{File: p.file, Line: line, EndLine: line}, Value: raw})
	}
}

// parseStatements reads statements until a closing brace (not consumed).
func (p *parser) parseStatements() []Node {
	var out []Node
	for {
		switch p.lex.Peek().Type {
		case TokenRBrace, TokenEOF:
			return out
		}
		if stmt := p.parseStatement(); stmt != nil {
			out = append(out, stmt)
		}
	}
}

// parseArmBody reads switch-arm statements up to the next arm or the end of
// the switch.
func (p *parser) parseArmBody() []Node {
	var out []Node
	for {
		tok := p.lex.Peek()
		if tok.Type == TokenRBrace || tok.Type == TokenEOF {
			return out
		}
		if tok.Type == TokenWord {
			switch strings.ToLower(tok.Value) {
			case "case", "pattern", "default":
				return out
			}
		}
		if stmt := p.parseStatement(); stmt != nil {
			out = append(out, stmt)
		}
	}
}

func (p *parser) parseStatement() Node {
	tok := p.lex.Next()
	start := p.pos(tok)

	switch tok.Type {
	case TokenLBrace:
		b := &Block{Pos: start, Body: p.parseStatements()}
		p.expect(TokenRBrace)
		b.Pos = p.end(b.Pos)
		return b
	case TokenAmp:
		return p.parseMacroCall(start)
	case TokenSemicolon:
		return nil
	case TokenWord:
	default:
		p.errorf(tok, "expected statement, got %s", tok)
		p.sync()
		return nil
	}

	switch tok.Value {
	case "if":
		cond, ok := p.paren()
		if !ok {
			return nil
		}
		n := &If{Pos: start, Cond: cond}
		n.Then, n.Else = p.parseBranches()
		n.Pos = p.end(n.Pos)
		return n
	case "ifTime":
		raw, ok := p.paren()
		if !ok {
			return nil
		}
		n := &IfTime{Pos: start, Time: *parseTimeFields(splitTime(raw))}
		n.Then, n.Else = p.parseBranches()
		n.Pos = p.end(n.Pos)
		return n
	case "random":
		pct, ok := p.paren()
		if !ok {
			return nil
		}
		n := &Random{Pos: start, Percent: pct}
		n.Then, n.Else = p.parseBranches()
		n.Pos = p.end(n.Pos)
		return n
	case "while":
		cond, ok := p.paren()
		if !ok {
			return nil
		}
		n := &While{Pos: start, Cond: cond, Body: p.parseBody()}
		n.Pos = p.end(n.Pos)
		return n
	case "for":
		raw, ok := p.paren()
		if !ok {
			return nil
		}
		parts := splitTop(raw, ';')
		if len(parts) != 3 {
			p.errorf(tok, "for needs init; test; increment")
			return nil
		}
		n := &For{Pos: start, Init: parts[0], Test: parts[1], Inc: parts[2], Body: p.parseBody()}
		n.Pos = p.end(n.Pos)
		return n
	case "switch":
		return p.parseSwitch(start)
	case "goto":
		return p.parseGoto(start)
	case "jump":
		return p.parseJump(start)
	case "break":
		p.expect(TokenSemicolon)
		return &Break{Pos: p.end(start)}
	case "continue":
		p.expect(TokenSemicolon)
		return &Continue{Pos: p.end(start)}
	case "return":
		p.expect(TokenSemicolon)
		return &Return{Pos: p.end(start)}
	case "local":
		name, ok := p.name()
		if !ok {
			p.sync()
			return nil
		}
		return p.parseAssign(name, true)
	case "catch":
		name, ok := p.name()
		if !ok {
			p.sync()
			return nil
		}
		if _, ok := p.expect(TokenLBrace); !ok {
			p.sync()
			return nil
		}
		c := &Catch{Pos: start, Exten: name.Value, Body: p.parseStatements()}
		p.expect(TokenRBrace)
		c.Pos = p.end(c.Pos)
		return c
	}

	switch next := p.lex.Peek(); next.Type {
	case TokenColon:
		p.lex.Next()
		return &Label{Pos: start, Name: tok.Value}
	case TokenAssign:
		return p.parseAssign(tok, false)
	case TokenLParen:
		p.lex.Next()
		raw, _, ok := p.lex.ReadRaw(')')
		if !ok {
			p.errorf(p.lex.Peek(), "unterminated argument list for %s", tok.Value)
			p.sync()
			return nil
		}
		p.lex.Next()
		p.expect(TokenSemicolon)
		return &AppCall{Pos: p.end(start), App: tok.Value, Args: SplitArgs(raw)}
	case TokenSemicolon:
		p.lex.Next()
		return &AppCall{Pos: start, App: tok.Value}
	default:
		p.errorf(next, "unexpected %s after %s", next, tok.Value)
		p.sync()
		return nil
	}
}

func (p *parser) parseAssign(name Token, local bool) Node {
	if _, ok := p.expect(TokenAssign); !ok {
		p.sync()
		return nil
	}
	value, _, ok := p.lex.ReadRaw(';')
	if !ok {
		p.errorf(p.lex.Peek(), "expected ';' after value of %s", name.Value)
		p.sync()
		return nil
	}
	p.lex.Next()
	pos := p.end(p.pos(name))
	if local {
		return &LocalVarDecl{Pos: pos, Name: name.Value, Value: value}
	}
	return &VarDecl{Pos: pos, Name: name.Value, Value: value}
}

func (p *parser) parseMacroCall(start Pos) Node {
	name, ok := p.name()
	if !ok {
		p.sync()
		return nil
	}
	call := &MacroCall{Pos: start, Name: name.Value}
	if p.lex.Peek().Type == TokenLParen {
		raw, ok := p.paren()
		if !ok {
			return nil
		}
		call.Args = SplitArgs(raw)
	}
	p.expect(TokenSemicolon)
	call.Pos = p.end(call.Pos)
	return call
}

func (p *parser) parseSwitch(start Pos) Node {
	expr, ok := p.paren()
	if !ok {
		return nil
	}
	sw := &Switch{Pos: start, Expr: expr}
	if _, ok := p.expect(TokenLBrace); !ok {
		p.sync()
		return nil
	}
	for {
		tok := p.lex.Next()
		armPos := p.pos(tok)
		switch {
		case tok.Type == TokenRBrace:
			sw.Pos = p.end(sw.Pos)
			return sw
		case tok.Type == TokenEOF:
			p.errorf(tok, "unterminated switch")
			return sw
		case tok.Type == TokenWord && strings.EqualFold(tok.Value, "default"):
			p.expect(TokenColon)
			sw.Arms = append(sw.Arms, &Default{Pos: armPos, Body: p.parseArmBody()})
		case tok.Type == TokenWord && (strings.EqualFold(tok.Value, "case") || strings.EqualFold(tok.Value, "pattern")):
			value, _, ok := p.lex.ReadRaw(':')
			if !ok {
				p.errorf(tok, "expected ':' after %s value", tok.Value)
				p.sync()
				continue
			}
			p.lex.Next()
			value = strings.Trim(value, `"`)
			if strings.EqualFold(tok.Value, "case") {
				sw.Arms = append(sw.Arms, &Case{Pos: armPos, Value: value, Body: p.parseArmBody()})
			} else {
				sw.Arms = append(sw.Arms, &Pattern{Pos: armPos, Value: value, Body: p.parseArmBody()})
			}
		default:
			p.errorf(tok, "expected case, pattern or default, got %s", tok)
			p.sync()
		}
	}
}

func (p *parser) parseGoto(start Pos) Node {
	raw, _, ok := p.lex.ReadRaw(';')
	if !ok {
		p.errorf(p.lex.Peek(), "expected ';' after goto")
		p.sync()
		return nil
	}
	p.lex.Next()
	var target []string
	for _, part := range strings.Split(strings.ReplaceAll(raw, "|", ","), ",") {
		target = append(target, strings.TrimSpace(part))
	}
	if raw == "" || len(target) > 3 {
		p.errorf(Token{Line: start.Line, Column: start.Col}, "goto needs one to three target parts, got %q", raw)
		return nil
	}
	return &Goto{Pos: p.end(start), Target: target}
}

// parseJump handles "jump ext[,prio][@context];" as a goto to step 1.
func (p *parser) parseJump(start Pos) Node {
	raw, _, ok := p.lex.ReadRaw(';')
	if !ok {
		p.errorf(p.lex.Peek(), "expected ';' after jump")
		p.sync()
		return nil
	}
	p.lex.Next()
	ctx := ""
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		ctx = strings.TrimSpace(raw[i+1:])
		raw = raw[:i]
	}
	ext, label, _ := strings.Cut(strings.TrimSpace(raw), ",")
	if label == "" {
		label = "1"
	}
	target := []string{strings.TrimSpace(ext), strings.TrimSpace(label)}
	if ctx != "" {
		target = append([]string{ctx}, target...)
	}
	return &Goto{Pos: p.end(start), Target: target}
}

// paren reads "( raw )".
func (p *parser) paren() (string, bool) {
	if _, ok := p.expect(TokenLParen); !ok {
		p.sync()
		return "", false
	}
	raw, _, ok := p.lex.ReadRaw(')')
	if !ok {
		p.errorf(p.lex.Peek(), "expected ')'")
		p.sync()
		return "", false
	}
	p.lex.Next()
	return raw, true
}

func (p *parser) parseBody() []Node {
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	if b, ok := stmt.(*Block); ok {
		return b.Body
	}
	return []Node{stmt}
}

func (p *parser) parseBranches() (then, els []Node) {
	then = p.parseBody()
	if tok := p.lex.Peek(); tok.Type == TokenWord && tok.Value == "else" {
		p.lex.Next()
		els = p.parseBody()
		if els == nil {
			els = []Node{}
		}
	}
	return then, els
}

// SplitArgs splits an argument list on top-level commas. Quotes, brackets
// and variable references keep their commas.
func SplitArgs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return splitTop(raw, ',')
}

func splitTop(raw string, sep byte) []string {
	var out []string
	depth := 0
	quoted := false
	start := 0
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '\\' && quoted:
			i++
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
		case ch == sep && depth == 0:
			out = append(out, strings.TrimSpace(raw[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(raw[start:]))
}

// splitTime splits an ifTime argument on '|' (or ',' when no '|' is used).
func splitTime(raw string) []string {
	if strings.Contains(raw, "|") {
		return strings.Split(raw, "|")
	}
	return strings.Split(raw, ",")
}

func parseTimeFields(fields []string) *TimeSpec {
	ts := &TimeSpec{}
	dst := []*string{&ts.Hours, &ts.DaysOfWeek, &ts.DaysOfMonth, &ts.Months}
	for i, f := range fields {
		if i >= len(dst) {
			break
		}
		*dst[i] = strings.TrimSpace(f)
	}
	return ts
}
