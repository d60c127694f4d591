package storage

import (
	"bufio"
	"io"
	"strings"

	"github.com/happyhackingspace/seqlab/internal/compress"
	"github.com/happyhackingspace/seqlab/tagger"
)

// emptyColumn marks an absent value in a sentence file.
const emptyColumn = "_"

// ParseToken parses a tab-separated "form[\tlemma[\ttag[\tfeats]]]" line.
// Feats are separated by '|'.
func ParseToken(line string) (tagger.Token, error) {
	cols := strings.Split(line, "\t")
	if len(cols) > 4 {
		return tagger.Token{}, &ParseError{Reason: "too many columns"}
	}
	if cols[0] == "" {
		return tagger.Token{}, &ParseError{Reason: "empty form"}
	}
	col := func(i int) string {
		if i >= len(cols) || cols[i] == emptyColumn {
			return ""
		}
		return cols[i]
	}

	tok := tagger.Token{Form: cols[0], Lemma: col(1), Tag: col(2)}
	if feats := col(3); feats != "" {
		tok.Feats = strings.Split(feats, "|")
	}
	return tok, nil
}

// FormatToken renders a token in the syntax read by ParseToken.
func FormatToken(tok tagger.Token) string {
	col := func(s string) string {
		if s == "" {
			return emptyColumn
		}
		return s
	}
	return strings.Join([]string{tok.Form, col(tok.Lemma), col(tok.Tag), col(strings.Join(tok.Feats, "|"))}, "\t")
}

// ReadSentences reads one token per line with sentences separated by blank
// lines. Lines starting with '#' are ignored.
func ReadSentences(r io.Reader) ([]tagger.Sentence, error) {
	return readSentences(r, "<reader>")
}

func readSentences(r io.Reader, source string) ([]tagger.Sentence, error) {
	var (
		sentences []tagger.Sentence
		cur       tagger.Sentence
	)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				sentences = append(sentences, cur)
				cur = nil
			}
			continue
		}
		tok, err := ParseToken(line)
		if err != nil {
			pe := err.(*ParseError)
			pe.Source, pe.Line = source, n
			return nil, pe
		}
		cur = append(cur, tok)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Source: source, Line: n, Reason: "read", cause: err}
	}
	if len(cur) > 0 {
		sentences = append(sentences, cur)
	}
	return sentences, nil
}

// ReadSentenceFile reads a, possibly compressed, sentence file.
func ReadSentenceFile(path string) ([]tagger.Sentence, error) {
	r, err := compress.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readSentences(r, path)
}

// WriteSentences writes sentences in the syntax read by ReadSentences.
func WriteSentences(w io.Writer, sentences []tagger.Sentence) error {
	bw := bufio.NewWriter(w)
	for _, s := range sentences {
		for _, tok := range s {
			bw.WriteString(FormatToken(tok))
			bw.WriteByte('\n')
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSentenceFile writes a, possibly compressed, sentence file.
func WriteSentenceFile(path string, sentences []tagger.Sentence) error {
	w, err := compress.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSentences(w, sentences); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
