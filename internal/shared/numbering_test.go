package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDocumentNumber(t *testing.T) {
	require.Equal(t, "COT-2026-0001", FormatDocumentNumber(DocPrefixQuotation, 2026, 1))
	require.Equal(t, "B2B-2026-0042", FormatDocumentNumber(DocPrefixOrder, 2026, 42))
	require.Equal(t, "REQ-2026-12345", FormatDocumentNumber(DocPrefixReplenishment, 2026, 12345))
}
