package answer

import "github.com/pkoukk/tiktoken-go"

var encoding = func() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}()

// CountTokens returns the tiktoken token count for text, falling back to a
// byte-length estimate if the encoding could not be loaded (pkg/chunk, in
// the same situation, disables its secondary token cap instead).
func CountTokens(text string) int {
	if encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
