package port

type Tokenizer interface {
	Tokenize(text string) []string

	CountTokens(text string) int
}

// TokenCounter is the part of Tokenizer the chunker needs.
type TokenCounter interface {
	CountTokens(text string) int
}
