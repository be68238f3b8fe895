package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGUID(t *testing.T) {
	raw := []byte{
		0xc9, 0x3f, 0xea, 0xc6, 0xb3, 0x59, 0xd6, 0x49,
		0xbc, 0x25, 0x09, 0x02, 0x2b, 0x24, 0xd1, 0xa5,
	}
	u := GUID(raw)
	assert.Equal(t, uuid.MustParse("c6ea3fc9-59b3-49d6-bc25-09022b24d1a5"), u)

	out := make([]byte, GUIDSize)
	PutGUID(out, u)
	assert.Equal(t, raw, out)
}

func TestUTF16String(t *testing.T) {
	s, n, ok := UTF16String([]byte{'M', 0, 'D', 0, '2', 0, 0, 0, 0xFF})
	assert.True(t, ok)
	assert.Equal(t, "MD2", s)
	assert.Equal(t, 8, n)

	_, _, ok = UTF16String([]byte{'M', 0, 'D'})
	assert.False(t, ok)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "abc", CString([]byte("abc\x00def")))
	assert.Equal(t, "abc", CString([]byte("abc")))
}

func TestAlign4(t *testing.T) {
	assert.Equal(t, 0, Align4(0))
	assert.Equal(t, 4, Align4(1))
	assert.Equal(t, 8, Align4(8))
}
