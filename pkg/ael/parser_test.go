package ael

import (
	"strings"
	"testing"
)

func TestLexer(t *testing.T) {
	input := `context default {
    _NXX. => Dial(SIP/${EXTEN});  // comment
    s/100 => goto a,b;
}`
	lex := NewLexer(input)
	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenWord, "context"},
		{TokenWord, "default"},
		{TokenLBrace, "{"},
		{TokenWord, "_NXX."},
		{TokenArrow, "=>"},
		{TokenWord, "Dial"},
		{TokenLParen, "("},
		{TokenWord, "SIP/${EXTEN}"},
		{TokenRParen, ")"},
		{TokenSemicolon, ";"},
		{TokenWord, "s/100"},
		{TokenArrow, "=>"},
		{TokenWord, "goto"},
		{TokenWord, "a"},
		{TokenComma, ","},
		{TokenWord, "b"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}
	for i, exp := range expected {
		tok := lex.Next()
		if tok.Type != exp.typ {
			t.Fatalf("token %d: expected type %v, got %v (%q)", i, exp.typ, tok.Type, tok.Value)
		}
		if exp.val != "" && tok.Value != exp.val {
			t.Fatalf("token %d: expected value %q, got %q", i, exp.val, tok.Value)
		}
	}
}

func TestLexerReadRaw(t *testing.T) {
	lex := NewLexer(`  "a;b" , ${X;Y}; rest`)
	raw, _, ok := lex.ReadRaw(';')
	if !ok {
		t.Fatal("ReadRaw did not find stop byte")
	}
	if raw != `"a;b" , ${X;Y}` {
		t.Errorf("raw = %q", raw)
	}
	if tok := lex.Next(); tok.Type != TokenSemicolon {
		t.Errorf("stop byte consumed, next = %v", tok)
	}
}

const sample = `
globals {
    CONSOLE=Console/dsp;
}

macro std-exten(ext, dev) {
    Dial(${dev}/${ext},20);
    switch (${DIALSTATUS}) {
    case BUSY:
        Voicemail(${ext},b);
        break;
    default:
        Voicemail(${ext},u);
    }
    catch a {
        VoiceMailMain(${ext});
        return;
    }
}

context internal {
    includes {
        parkedcalls;
        daytime|09:00-17:00|mon-fri|*|*;
    }
    ignorepat => 9;
    switches {
        IAX2/box;
    }

    regexten hint(SIP/100) 100 => {
        &std-exten(100,SIP/100);
    }
    _9NXX. => {
        for (x=0; ${x} < 3; x=${x} + 1) {
            Dial(DAHDI/g1/${EXTEN:1});
        }
        begin:
        local count=0;
        while (${count} < 10) {
            count=${count}+1;
            if (${count} = 5) continue;
        }
        ifTime (08:00-17:00|mon-fri|*|*) {
            NoOp(day);
        } else {
            goto begin;
        }
        random (25) {
            NoOp(lucky);
        }
        jump s@other;
        Hangup;
    }
}
`

func TestParseSample(t *testing.T) {
	tree, err := Parse("sample.ael", sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tree.Items) != 3 {
		t.Fatalf("expected 3 top-level items, got %d", len(tree.Items))
	}
	g, ok := tree.Items[0].(*Globals)
	if !ok || len(g.Vars) != 1 || g.Vars[0].Value != "Console/dsp" {
		t.Fatalf("globals not parsed: %#v", tree.Items[0])
	}

	macros := tree.Macros()
	if len(macros) != 1 || macros[0].Name != "std-exten" || len(macros[0].Params) != 2 {
		t.Fatalf("macro not parsed: %+v", macros)
	}
	sw, ok := macros[0].Body[1].(*Switch)
	if !ok || len(sw.Arms) != 2 {
		t.Fatalf("switch not parsed: %#v", macros[0].Body[1])
	}
	if c, ok := sw.Arms[0].(*Case); !ok || c.Value != "BUSY" || len(c.Body) != 2 {
		t.Errorf("case arm = %#v", sw.Arms[0])
	}
	if _, ok := macros[0].Body[2].(*Catch); !ok {
		t.Errorf("catch not parsed: %#v", macros[0].Body[2])
	}

	ctx := tree.Contexts()[0]
	if ctx.Name != "internal" || len(ctx.Items) != 5 {
		t.Fatalf("context = %s with %d items", ctx.Name, len(ctx.Items))
	}
	inc := ctx.Items[0].(*Includes)
	if len(inc.Entries) != 2 || inc.Entries[1].Time == nil || inc.Entries[1].Time.DaysOfWeek != "mon-fri" {
		t.Errorf("includes = %+v", inc.Entries)
	}
	ext := ctx.Items[3].(*Extension)
	if !ext.Regexten || ext.Hint != "SIP/100" || ext.Name != "100" {
		t.Errorf("extension header = %+v", ext)
	}
	call := ext.Body[0].(*MacroCall)
	if call.Name != "std-exten" || len(call.Args) != 2 || call.Args[1] != "SIP/100" {
		t.Errorf("macro call = %+v", call)
	}

	body := ctx.Items[4].(*Extension).Body
	kinds := make([]string, len(body))
	for i, n := range body {
		kinds[i] = Kind(n)
	}
	want := "for label localvardec while iftime random goto application call"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("statement kinds:\n got %s\nwant %s", got, want)
	}
	f := body[0].(*For)
	if f.Init != "x=0" || f.Test != "${x} < 3" || f.Inc != "x=${x} + 1" {
		t.Errorf("for header = %q %q %q", f.Init, f.Test, f.Inc)
	}
	it := body[4].(*IfTime)
	if it.Time.Hours != "08:00-17:00" || len(it.Else) != 1 {
		t.Errorf("ifTime = %+v", it)
	}
	j := body[6].(*Goto)
	if strings.Join(j.Target, ",") != "other,s,1" {
		t.Errorf("jump target = %v", j.Target)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("bad.ael", `context a {
    s => {
        NoOp(1)
        Hangup();
    }
}
context b { s => Dial(; }`)
	if err == nil {
		t.Fatal("expected syntax errors")
	}
	errs, ok := err.(ParseErrors)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if errs[0].Pos.Line != 4 {
		t.Errorf("first error at line %d, want 4: %v", errs[0].Pos.Line, errs[0])
	}
}

func TestFormatRoundTrip(t *testing.T) {
	tree, err := Parse("sample.ael", sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first := tree.Format()
	again, err := Parse("formatted.ael", first)
	if err != nil {
		t.Fatalf("reparse formatted output: %v\n%s", err, first)
	}
	if second := again.Format(); second != first {
		t.Errorf("format not stable:\n%s\n---\n%s", first, second)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{`"x,y",${CUT(a,b)},$[1,2]`, []string{`"x,y"`, "${CUT(a,b)}", "$[1,2]"}},
		{"a,,b", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		got := SplitArgs(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("SplitArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTreeParentAndReplace(t *testing.T) {
	app := NewApp("MacroExit")
	m := NewMacro("m", nil, NewIf("${x}", List(app), nil))
	tree := NewTree(m)

	if tree.Container(app) != m {
		t.Fatalf("container of app = %v", tree.Container(app))
	}
	ret := &Return{}
	if !tree.Replace(app, ret) {
		t.Fatal("Replace failed")
	}
	iff := m.Body[0].(*If)
	if iff.Then[0] != ret {
		t.Errorf("then[0] = %#v", iff.Then[0])
	}
	if tree.Parent(ret) != iff {
		t.Errorf("parent of replacement = %v", tree.Parent(ret))
	}
	if tree.Parent(app) != nil {
		t.Error("replaced node still indexed")
	}

	tail := &Return{}
	tree.Append(m, tail)
	if m.Body[len(m.Body)-1] != tail || tree.Parent(tail) != m {
		t.Error("Append did not attach node to macro body")
	}
}
