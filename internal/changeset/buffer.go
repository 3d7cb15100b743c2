package changeset

// initialBufferCap is the starting capacity for a freshly created Buffer;
// Go's append already grows a slice's backing array by doubling once its
// capacity is exceeded, so starting from this capacity is sufficient to
// realize "amortized-O(1) append with doubling growth from 128 bytes"
// without hand-rolling growth arithmetic the runtime already provides.
const initialBufferCap = 128

// maxBufferSize is a safety ceiling mirroring internal/wal's MaxRecordSize
// pattern: a changeset large enough to hit it almost certainly reflects a
// corrupt or adversarial input rather than a legitimate transaction.
const maxBufferSize = 1 << 30

// Buffer is an append-only byte buffer used by the encoder to accumulate a
// changeset and by the session recorder to accumulate a single row's
// pre-image. Once poisoned by an allocation failure, every further append
// is a no-op that returns the original error.
type Buffer struct {
	data []byte
	err  error
}

// NewBuffer returns an empty Buffer with its initial capacity pre-reserved.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, initialBufferCap)}
}

// Err returns the latched allocation error, if the buffer has been poisoned.
func (b *Buffer) Err() error { return b.err }

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's backing array and must not be retained across further appends.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes currently in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Truncate discards all bytes from position n onward, used by the encoder
// to rewind a table group or UPDATE record that turned out to be a no-op.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > len(b.data) {
		return
	}
	b.data = b.data[:n]
}

func (b *Buffer) reserve(n int) bool {
	if b.err != nil {
		return false
	}
	if len(b.data)+n > maxBufferSize {
		b.err = newErr(OutOfMemory, "Buffer.append", "", "buffer exceeds maximum size")
		return false
	}
	return true
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) error {
	if !b.reserve(1) {
		return b.err
	}
	b.data = append(b.data, c)
	return nil
}

// AppendBytes appends raw bytes verbatim.
func (b *Buffer) AppendBytes(p []byte) error {
	if !b.reserve(len(p)) {
		return b.err
	}
	b.data = append(b.data, p...)
	return nil
}

// AppendString appends raw bytes from a string verbatim (used for cstr names).
func (b *Buffer) AppendString(s string) error {
	if !b.reserve(len(s)) {
		return b.err
	}
	b.data = append(b.data, s...)
	return nil
}

// AppendVarint appends v encoded as a varint.
func (b *Buffer) AppendVarint(v uint32) error {
	if !b.reserve(varintLen(v)) {
		return b.err
	}
	b.data = appendVarint(b.data, v)
	return nil
}

// AppendUint64BE appends v as 8 big-endian bytes.
func (b *Buffer) AppendUint64BE(v uint64) error {
	if !b.reserve(8) {
		return b.err
	}
	b.data = appendUint64BE(b.data, v)
	return nil
}

// AppendValue appends v in tagged wire form.
func (b *Buffer) AppendValue(v Value) error {
	if !b.reserve(serializedSize(v)) {
		return b.err
	}
	b.data = appendValue(b.data, v)
	return nil
}
