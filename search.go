package suffixmerge

import (
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Searcher answers substring queries against a text and its on-disk suffix
// array without loading the table into memory.
type Searcher struct {
	text      []byte
	table     *Table
	sizes     *Table
	normalize bool
}

// NewSearcher returns a Searcher over text and its table. The caller keeps
// ownership of table.
func NewSearcher(text []byte, table *Table) *Searcher {
	return &Searcher{text: text, table: table}
}

// OpenSearcher loads the text at path and opens TablePath(path), inferring
// its width from the two file sizes. With mapped set the table is memory
// mapped instead of read with positional reads. SizesPath(path) is opened
// too when it exists, enabling Document and RetrieveDocuments.
func OpenSearcher(path string, mapped bool) (*Searcher, error) {
	text, err := LoadText(path)
	if err != nil {
		return nil, err
	}
	tablePath := TablePath(path)
	st, err := os.Stat(tablePath)
	if err != nil {
		return nil, ioErr("stat", tablePath, err)
	}
	width, err := TableWidth(st.Size(), int64(len(text)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tablePath, err)
	}

	open := OpenTable
	if mapped {
		open = OpenMappedTable
	}
	table, err := open(tablePath, width)
	if err != nil {
		return nil, err
	}
	s := NewSearcher(text, table)

	sizesPath := SizesPath(path)
	if _, err := os.Stat(sizesPath); err == nil {
		if s.sizes, err = OpenTable(sizesPath, 8); err != nil {
			table.Close()
			return nil, err
		}
	}
	return s, nil
}

// Normalize makes the Searcher apply NFC normalization to queries, for
// corpora that were normalized before indexing.
func (s *Searcher) Normalize() *Searcher {
	s.normalize = true
	return s
}

func (s *Searcher) query(q []byte) []byte {
	if s.normalize {
		return norm.NFC.Bytes(q)
	}
	return q
}

// Count returns the number of occurrences of query in the text.
func (s *Searcher) Count(query []byte) (int64, error) {
	lo, hi, err := s.table.LocatePrefix(s.text, s.query(query))
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// Find returns the positions of up to limit occurrences of query, in suffix
// order. A limit <= 0 returns all of them.
func (s *Searcher) Find(query []byte, limit int) ([]uint64, error) {
	lo, hi, err := s.table.LocatePrefix(s.text, s.query(query))
	if err != nil {
		return nil, err
	}
	if limit > 0 && hi-lo > int64(limit) {
		hi = lo + int64(limit)
	}
	out := make([]uint64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		p, err := s.table.Load(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Context returns up to size bytes before pos and up to size bytes after the
// match of length n at pos, never reaching past the document holding it.
func (s *Searcher) Context(pos uint64, n, size int) (before, after []byte) {
	p := int(min(pos, uint64(len(s.text))))
	end := min(p+n, len(s.text))
	return clipToDocument(s.text[max(p-size, 0):p], s.text[end:min(end+size, len(s.text))])
}

// Documents returns the IDs of up to limit distinct documents containing
// query, in suffix order of their first occurrence. A limit <= 0 returns
// all of them.
func (s *Searcher) Documents(query []byte, limit int) ([]uint32, error) {
	lo, hi, err := s.table.LocatePrefix(s.text, s.query(query))
	if err != nil {
		return nil, err
	}
	var (
		ids  []uint32
		seen = make(map[uint32]bool)
	)
	for i := lo; i < hi && (limit <= 0 || len(ids) < limit); i++ {
		p, err := s.table.Load(i)
		if err != nil {
			return nil, err
		}
		id, err := DocumentAt(s.text, p)
		if errors.Is(err, ErrNoDocument) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NumDocuments returns the number of documents listed in the size file.
func (s *Searcher) NumDocuments() (int64, error) {
	if s.sizes == nil {
		return 0, ErrNoSizes
	}
	return max(s.sizes.Len()-1, 0), nil
}

// Document returns the text of document id, without its header.
func (s *Searcher) Document(id uint32) ([]byte, error) {
	n, err := s.NumDocuments()
	if err != nil {
		return nil, err
	}
	if id == 0 || int64(id) > n {
		return nil, fmt.Errorf("%w: document %d of %d", ErrInvalidRange, id, n)
	}
	start, err := s.sizes.Load(int64(id) - 1)
	if err != nil {
		return nil, err
	}
	end, err := s.sizes.Load(int64(id))
	if err != nil {
		return nil, err
	}
	if start > end || end > uint64(len(s.text)) {
		return nil, fmt.Errorf("%w: document %d spans [%d, %d) of %d bytes", ErrTableLength, id, start, end, len(s.text))
	}
	doc := s.text[start:end]
	if len(doc) >= docHeaderSize && binary.LittleEndian.Uint32(doc[len(DocSeparator):]) == id {
		doc = doc[docHeaderSize:]
	}
	return doc, nil
}

// RetrieveDocuments writes one "id,text" record per document to w.
func (s *Searcher) RetrieveDocuments(w *csv.Writer, ids []uint32) error {
	for _, id := range ids {
		doc, err := s.Document(id)
		if err != nil {
			return err
		}
		if err := w.Write([]string{strconv.FormatUint(uint64(id), 10), string(doc)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Close releases the table and, if OpenSearcher opened one, the size file.
func (s *Searcher) Close() error {
	err := s.table.Close()
	if s.sizes != nil {
		err = errors.Join(err, s.sizes.Close())
	}
	return err
}
