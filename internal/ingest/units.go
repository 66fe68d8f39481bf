package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/medkb/medqa-go/internal/normalize"
)

// maxUnitBytes bounds a single JSONL line. Encyclopedia article bodies run
// long, but anything past this is a corrupt line, not a document.
const maxUnitBytes = 4 << 20

// FileSource returns a Source streaming raw units from a JSONL file: one
// JSON-encoded unit per line, blank lines skipped. The file is opened
// lazily when the sequence is first consumed, so constructing sources for
// a whole corpus costs nothing.
func FileSource(name, path string) Source {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Source{Name: name, Units: readUnits(path)}
}

// readUnits decodes a JSONL file into a lazy unit sequence. Undecodable
// lines yield a non-nil error element and the stream continues; an
// unreadable file yields a single error element.
func readUnits(path string) iter.Seq2[normalize.RawUnit, error] {
	return func(yield func(normalize.RawUnit, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(normalize.RawUnit{}, fmt.Errorf("open %s: %w", path, err))
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxUnitBytes)

		line := 0
		ordinal := 0
		for scanner.Scan() {
			line++
			raw := strings.TrimSpace(scanner.Text())
			if raw == "" {
				continue
			}

			var unit normalize.RawUnit
			if err := json.Unmarshal([]byte(raw), &unit); err != nil {
				if !yield(normalize.RawUnit{}, fmt.Errorf("%s:%d: %w", path, line, err)) {
					return
				}
				continue
			}
			ordinal++
			if unit.Ordinal == 0 {
				unit.Ordinal = ordinal
			}
			if unit.SourceFile == "" {
				unit.SourceFile = filepath.Base(path)
			}
			if !yield(unit, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(normalize.RawUnit{}, fmt.Errorf("read %s: %w", path, err))
		}
	}
}
