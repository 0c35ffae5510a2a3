package token

import "testing"

func TestKeywordLookup(t *testing.T) {
	tests := []struct {
		name string
		word string
		want Keyword
	}{
		{name: "int keyword", word: "int", want: KwInt},
		{name: "long keyword", word: "long", want: KwLong},
		{name: "unsigned keyword", word: "unsigned", want: KwUnsigned},
		{name: "return keyword", word: "return", want: KwReturn},
		{name: "continue keyword", word: "continue", want: KwContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Keywords[tt.word]
			if !ok {
				t.Fatalf("Keywords[%q] missing", tt.word)
			}
			if got != tt.want {
				t.Errorf("Keywords[%q] = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
}

func TestSymbolArity(t *testing.T) {
	tests := []struct {
		name string
		sym  Symbol
		want Arity
	}{
		{name: "plus is ambiguous", sym: SymPlus, want: ArityAmbiguous},
		{name: "minus is ambiguous", sym: SymMinus, want: ArityAmbiguous},
		{name: "bang is unary only", sym: SymBang, want: ArityUnary},
		{name: "tilde is unary only", sym: SymTilde, want: ArityUnary},
		{name: "increment is unary only", sym: SymIncrement, want: ArityUnary},
		{name: "star is binary only", sym: SymStar, want: ArityBinary},
		{name: "ampamp is binary only", sym: SymAmpAmp, want: ArityBinary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sym.Arity(); got != tt.want {
				t.Errorf("%s.Arity() = %v, want %v", tt.sym, got, tt.want)
			}
		})
	}
}

func TestTokenConstructors(t *testing.T) {
	tok := NumberToken(42, SuffixLong, "42l", 3)
	if tok.Kind != KindNumber || tok.Number.Value != 42 || tok.Number.Suffix != SuffixLong {
		t.Errorf("NumberToken() = %+v, unexpected fields", tok)
	}

	name := NameToken("foo", 1)
	if name.Kind != KindName || name.Name != "foo" {
		t.Errorf("NameToken() = %+v, unexpected fields", name)
	}

	eof := EOFToken(10)
	if eof.Kind != KindEOF {
		t.Errorf("EOFToken() = %+v, want Kind == KindEOF", eof)
	}
}
