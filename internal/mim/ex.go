package mim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dojam/dojam/internal/model"
)

// execEx implements the `:<ex>` sub-language: a byte-length-prefixed,
// space-separated ASCII command (spec.md §4.3/§6).
func (p *parser) execEx(byteLen int) error {
	raw, err := p.readRawBytes(byteLen)
	if err != nil {
		return err
	}

	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty ex command", ErrInvalidEx)
	}

	switch fields[0] {
	case "newbook":
		return p.exNewBook(fields[1:])
	case "newdoc":
		return p.exNewDoc(fields[1:])
	case "setdoc":
		return p.exSetDoc(fields[1:])
	default:
		return fmt.Errorf("%w: unknown ex command %q", ErrInvalidEx, fields[0])
	}
}

func exInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidEx, s)
	}

	return n, nil
}

// exNewBook implements "newbook <book_id> <fundament> <template>". template
// names a seed ("-" for none); seeding document content from a template is
// outside this package's scope (spec.md's Non-goals exclude rich content
// generation), so it is parsed but otherwise unused.
func (p *parser) exNewBook(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: newbook wants 3 arguments, got %d", ErrInvalidEx, len(args))
	}

	bookID, err := exInt(args[0])
	if err != nil {
		return err
	}

	fundament, err := parseFundament(args[1])
	if err != nil {
		return err
	}

	if p.snap.BookIndex(bookID) >= 0 {
		return fmt.Errorf("%w: book %d already exists", ErrInvalidEx, bookID)
	}

	p.snap.Books = append(p.snap.Books, model.Book{BookID: bookID, Fundament: fundament})

	return nil
}

func parseFundament(s string) (model.Fundament, error) {
	switch s {
	case "mie-urlyd":
		return model.FundamentMieUrlyd, nil
	case "-":
		return model.FundamentReserved, nil
	default:
		return 0, fmt.Errorf("%w: unknown fundament %q", ErrInvalidEx, s)
	}
}

// exNewDoc implements "newdoc <book_id> <doc_id> <name>".
func (p *parser) exNewDoc(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: newdoc wants 3 arguments, got %d", ErrInvalidEx, len(args))
	}

	bookID, err := exInt(args[0])
	if err != nil {
		return err
	}

	docID, err := exInt(args[1])
	if err != nil {
		return err
	}

	if p.snap.BookIndex(bookID) < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownBook, bookID)
	}

	key := model.DocKey{BookID: bookID, DocID: docID}
	if p.snap.DocIndex(key) >= 0 {
		return fmt.Errorf("%w: document (%d,%d) already exists", ErrInvalidEx, bookID, docID)
	}

	p.snap.Documents = append(p.snap.Documents, model.Document{BookID: bookID, DocID: docID, Name: args[2]})

	return nil
}

// exSetDoc implements "setdoc <book_id> <doc_id>": pin the current
// mim-state onto an existing document.
func (p *parser) exSetDoc(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: setdoc wants 2 arguments, got %d", ErrInvalidEx, len(args))
	}

	bookID, err := exInt(args[0])
	if err != nil {
		return err
	}

	docID, err := exInt(args[1])
	if err != nil {
		return err
	}

	if _, err := p.snap.Document(model.DocKey{BookID: bookID, DocID: docID}); err != nil {
		return err
	}

	p.st.BookID = bookID
	p.st.DocID = docID

	return nil
}
