package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadStopWords reads a stop-word list, one word per line. Blank lines and
// lines starting with '#' are ignored. An empty path yields no stop words.
func LoadStopWords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop words file: %w", err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		word := strings.TrimSpace(sc.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, strings.ToLower(word))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stop words file: %w", err)
	}
	return words, nil
}
