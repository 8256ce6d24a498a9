package ocr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLabelFullText(t *testing.T) {
	ex := ParseLabel("TECELAGEM ALFA\nREF: TA-4512\nLOTE 2026-B7\n120,50 MTS")
	require.Equal(t, "TA-4512", ex.Reference)
	require.Equal(t, "2026-B7", ex.Batch)
	require.NotNil(t, ex.Quantity)
	require.Equal(t, "120.5", ex.Quantity.String())
}

func TestParseLabelPartialText(t *testing.T) {
	ex := ParseLabel("etiqueta danificada ref.tb-99")
	require.Equal(t, "TB-99", ex.Reference)
	require.Empty(t, ex.Batch)
	require.Nil(t, ex.Quantity)
}

func TestParseLabelNoMatches(t *testing.T) {
	ex := ParseLabel("texto sem padrões conhecidos")
	require.Equal(t, "texto sem padrões conhecidos", ex.RawText)
	require.Empty(t, ex.Reference)
	require.Nil(t, ex.Quantity)
}
