package payreq

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

func TestEncodeDecode(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	info := records.PaymentInfo{
		RecipientURI:   "swpt:1/2",
		PayeeReference: "00000000-0000-4000-8000-000000000001",
		PayeeName:      "Alice",
		Amount:         1234,
		Deadline:       &deadline,
		Description:    "two\nlines",
	}
	data, err := Text{}.Encode(info)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "PR0\nswpt:1/2\nAlice\n1234\n2026-06-01T00:00:00Z\n"))

	got, err := Text{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestEncode_InvalidData(t *testing.T) {
	_, err := Text{}.Encode(records.PaymentInfo{RecipientURI: "swpt:1/2", PayeeName: "line\nbreak"})
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = Text{}.Encode(records.PaymentInfo{RecipientURI: "swpt:1/2", Amount: -1})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestDecode_Rejects(t *testing.T) {
	for _, doc := range []string{
		"",
		"PR1\nswpt:1/2\nA\n1\n\nref\n\n",
		"PR0\nswpt:1/2\nA\nlots\n\nref\n\n",
		"PR0\nswpt:1/2\nA\n1\nsoon\nref\n\n",
		"PR0\nnot a uri\nA\n1\n\nref\n\n",
	} {
		_, err := Text{}.Decode([]byte(doc))
		assert.True(t, fault.Is(err, fault.KindInvalidPaymentRequest), "doc %q: %v", doc, err)
	}
}
