package storage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/happyhackingspace/seqlab/classifier"
	"github.com/happyhackingspace/seqlab/internal/compress"
	"github.com/happyhackingspace/seqlab/feature"
)

// ParseError reports a malformed instance line.
type ParseError struct {
	Source string
	Line   int
	Reason string
	cause  error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("storage: %s:%d: %s", e.Source, e.Line, e.Reason)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.cause }

// ParseInstance parses "label type:value[:weight] ...". The weight suffix is
// read only when weighted is true.
func ParseInstance(line string, weighted bool) (classifier.Example, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return classifier.Example{}, &ParseError{Reason: "empty instance"}
	}

	ex := classifier.Example{Label: fields[0], Vector: make(feature.Vector, 0, len(fields)-1)}
	for _, tok := range fields[1:] {
		typ, rest, ok := strings.Cut(tok, ":")
		if !ok || typ == "" {
			return classifier.Example{}, &ParseError{Reason: fmt.Sprintf("malformed feature %q", tok)}
		}
		if !weighted {
			ex.Vector.Add(typ, rest)
			continue
		}

		i := strings.LastIndexByte(rest, ':')
		if i < 0 {
			return classifier.Example{}, &ParseError{Reason: fmt.Sprintf("missing weight in %q", tok)}
		}
		w, err := strconv.ParseFloat(rest[i+1:], 64)
		if err != nil {
			return classifier.Example{}, &ParseError{Reason: fmt.Sprintf("invalid weight in %q", tok), cause: err}
		}
		ex.Vector.AddWeighted(typ, rest[:i], w)
	}
	return ex, nil
}

// FormatInstance renders an example in the syntax read by ParseInstance.
func FormatInstance(ex classifier.Example, weighted bool) string {
	var b strings.Builder
	b.WriteString(ex.Label)
	for i, f := range ex.Vector {
		b.WriteByte(' ')
		b.WriteString(f.Type)
		b.WriteByte(':')
		b.WriteString(f.Value)
		if weighted {
			b.WriteByte(':')
			b.WriteString(strconv.FormatFloat(ex.Vector.WeightAt(i), 'g', -1, 64))
		}
	}
	return b.String()
}

// ReadInstances reads one instance per line. Blank lines and lines starting
// with '#' are ignored.
func ReadInstances(r io.Reader, weighted bool) ([]classifier.Example, error) {
	return readInstances(r, "<reader>", weighted)
}

func readInstances(r io.Reader, source string, weighted bool) ([]classifier.Example, error) {
	var examples []classifier.Example
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ex, err := ParseInstance(line, weighted)
		if err != nil {
			pe := err.(*ParseError)
			pe.Source, pe.Line = source, n
			return nil, pe
		}
		examples = append(examples, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Source: source, Line: n, Reason: "read", cause: err}
	}
	return examples, nil
}

// ReadInstanceFile reads a, possibly compressed, instance file.
func ReadInstanceFile(path string, weighted bool) ([]classifier.Example, error) {
	r, err := compress.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readInstances(r, path, weighted)
}

// WriteInstances writes one instance per line.
func WriteInstances(w io.Writer, examples []classifier.Example, weighted bool) error {
	bw := bufio.NewWriter(w)
	for _, ex := range examples {
		if _, err := bw.WriteString(FormatInstance(ex, weighted)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteInstanceFile writes a, possibly compressed, instance file.
func WriteInstanceFile(path string, examples []classifier.Example, weighted bool) error {
	w, err := compress.Create(path)
	if err != nil {
		return err
	}
	if err := WriteInstances(w, examples, weighted); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
