package runtime

import (
	"bufio"
	"bytes"
	"chat-relay/errors"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// CensoredData is the merged dictionary plus the languages it came from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads forbidden word lists from a filesystem.
type CensoredLoader struct {
	fsys fs.FS
}

func NewCensoredLoader(fsys fs.FS) *CensoredLoader {
	return &CensoredLoader{fsys: fsys}
}

// LoadAll reads every .txt file of dir, one language per file ("fr.txt" is "fr"),
// and returns the sorted unique words.
func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// Scanner copes with \r\n line endings
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}
	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	slices.Sort(words)
	return &CensoredData{Words: words, Languages: languages}, nil
}
