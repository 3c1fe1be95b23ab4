package store

// Cursor is a finite, restartable sequence of matching documents. The
// result set is materialized when the query executes; iteration itself
// allocates nothing and Reset rewinds to the first document.
type Cursor struct {
	docs []Document
	pos  int
}

func newCursor(docs []Document) *Cursor {
	return &Cursor{docs: docs, pos: -1}
}

// Next advances the cursor. It returns false once the sequence is exhausted.
func (c *Cursor) Next() bool {
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

// Doc returns the document at the current position. Valid only after a
// successful Next.
func (c *Cursor) Doc() Document {
	return c.docs[c.pos]
}

// Reset rewinds the cursor to the beginning so the sequence can be
// iterated again.
func (c *Cursor) Reset() {
	c.pos = -1
}

// Len returns the total number of documents in the result set.
func (c *Cursor) Len() int {
	return len(c.docs)
}

// All drains the cursor from its current position and returns the remaining
// documents.
func (c *Cursor) All() []Document {
	var out []Document
	for c.Next() {
		out = append(out, c.Doc())
	}
	return out
}
