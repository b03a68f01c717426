package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterner_InternIsIdempotent(t *testing.T) {
	in := New()
	id1 := in.Intern("AAPL")
	id2 := in.Intern("AAPL")
	assert.Equal(t, id1, id2)
}

func TestInterner_DistinctSymbolsGetDistinctIds(t *testing.T) {
	in := New()
	a := in.Intern("AAPL")
	b := in.Intern("MSFT")
	assert.NotEqual(t, a, b)
}

func TestInterner_NameRoundTrips(t *testing.T) {
	in := New()
	id := in.Intern("GOOG")
	assert.Equal(t, "GOOG", in.Name(id))
}

func TestInterner_NameUnknownIdReturnsEmpty(t *testing.T) {
	in := New()
	assert.Equal(t, "", in.Name(99))
}

func TestInterner_CanonicalizesWhitespaceAndLength(t *testing.T) {
	in := New()
	id1 := in.Intern("  AAPL  ")
	id2 := in.Intern("AAPL")
	assert.Equal(t, id1, id2)

	id3 := in.Intern("TOOLONGTICKER")
	assert.Equal(t, "TOOLONGT", in.Name(id3))
}
