package wire

// Cursor walks a Buffer front to back. A failed read leaves the cursor where
// it was. Cursors are cheap and belong to a single decode call.
type Cursor struct {
	buf *Buffer
	off int
}

// NewCursor returns a cursor positioned at off.
func NewCursor(buf *Buffer, off int) *Cursor {
	return &Cursor{buf: buf, off: off}
}

// Offset returns the current position within the buffer.
func (c *Cursor) Offset() int { return c.off }

// Buffer returns the buffer the cursor reads from.
func (c *Cursor) Buffer() *Buffer { return c.buf }

// Skip advances the cursor by n bytes, which must be captured.
func (c *Cursor) Skip(n int) error {
	if err := c.buf.Check(c.off, n); err != nil {
		return err
	}
	c.off += n
	return nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	v, err := c.buf.Uint16(c.off)
	if err != nil {
		return 0, err
	}
	c.off += 2
	return v, nil
}

func (c *Cursor) ReadUint32() (uint32, error) {
	v, err := c.buf.Uint32(c.off)
	if err != nil {
		return 0, err
	}
	c.off += 4
	return v, nil
}

func (c *Cursor) ReadUint64() (uint64, error) {
	v, err := c.buf.Uint64(c.off)
	if err != nil {
		return 0, err
	}
	c.off += 8
	return v, nil
}

// ReadBytes returns the next n bytes without copying them.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	v, err := c.buf.Bytes(c.off, n)
	if err != nil {
		return nil, err
	}
	c.off += n
	return v, nil
}

func (c *Cursor) ReadGUID() (GUID, error) {
	v, err := c.buf.GUID(c.off)
	if err != nil {
		return v, err
	}
	c.off += len(v)
	return v, nil
}
