package cart

import (
	"io"

	"github.com/ardnew/cartbridge/pkg"
)

// Poll returns the header of the pending incoming message, or 0 if there is
// none.
//
// While a message is partially consumed, Poll returns its datatype and the
// number of unread bytes without touching the cart. Otherwise it asks the
// cart for a new message, and if one has arrived, has the cart stage it and
// resets the cursor to its start.
func (d *Driver) Poll() pkg.Header {
	if d.backend == nil {
		return 0
	}

	if d.cur.left <= 0 {
		d.cur.reset()
	}
	if d.cur.left != 0 {
		return pkg.NewHeader(d.cur.datatype, d.cur.left)
	}

	header, err := d.backend.Poll()
	if err != nil {
		pkg.LogWarn(pkg.ComponentRead, "staging incoming message failed",
			"header", header.String(),
			"error", err)
		d.cur.reset()
		return 0
	}
	if header.Length() == 0 {
		return 0
	}

	d.cur = cursor{
		datatype: header.Datatype(),
		total:    header.Length(),
		left:     header.Length(),
		block:    noBlock,
	}
	pkg.LogDebug(pkg.ComponentRead, "message pending", "header", header.String())
	return header
}

// Read copies up to len(p) unread bytes of the pending message into p. It
// returns io.EOF when nothing is left to read, and pkg.ErrNoBackend if no
// cart was detected.
//
// Blocks are fetched from the cart only when the cursor enters a block that
// is not already staged.
func (d *Driver) Read(p []byte) (int, error) {
	if d.backend == nil {
		return 0, pkg.ErrNoBackend
	}
	if d.cur.left == 0 {
		return 0, io.EOF
	}

	want := len(p)
	if want > d.cur.left {
		want = d.cur.left
	}

	offset := d.cur.total - d.cur.left
	start := offset % pkg.BlockSize
	block := offset - start

	read := 0
	for read < want {
		if d.cur.block != block {
			if err := d.backend.ReadBlock(d.stage, block); err != nil {
				d.cur.block = noBlock
				pkg.LogWarn(pkg.ComponentRead, "block fetch failed",
					"block", block,
					"error", err)
				return read, err
			}
			d.cur.block = block
			pkg.LogDebug(pkg.ComponentRead, "block staged", "block", block)
		}

		n := copy(p[read:want], d.stage[start:])
		read += n
		d.cur.left -= n
		block += pkg.BlockSize
		start = 0
	}
	return read, nil
}

// Skip discards up to n unread bytes without fetching them. Non-positive n
// does nothing.
func (d *Driver) Skip(n int) {
	if n <= 0 {
		return
	}
	d.cur.left -= n
	if d.cur.left < 0 {
		d.cur.left = 0
	}
}

// Rewind returns up to n consumed bytes to the unread portion of the
// message. Non-positive n does nothing.
func (d *Driver) Rewind(n int) {
	if n <= 0 {
		return
	}
	d.cur.left += n
	if d.cur.left > d.cur.total {
		d.cur.left = d.cur.total
	}
}

// Purge discards the pending message.
func (d *Driver) Purge() {
	d.cur.reset()
}

// Pending returns the number of unread bytes of the current message.
func (d *Driver) Pending() int {
	return d.cur.left
}

// Datatype returns the datatype of the current message.
func (d *Driver) Datatype() pkg.Datatype {
	return d.cur.datatype
}

// Size returns the total size of the current message.
func (d *Driver) Size() int {
	return d.cur.total
}
