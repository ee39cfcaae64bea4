package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		lang Language
		body string
		want Intent
	}{
		{"pt cancel", LangPortuguese, "Quero cancelar meu pedido", IntentCancelRequest},
		{"pt refund means cancel", LangPortuguese, "Preciso de reembolso", IntentCancelRequest},
		{"pt status", LangPortuguese, "Qual o status do rastreio?", IntentStatusInquiry},
		{"pt complaint", LangPortuguese, "Produto chegou com defeito", IntentComplaint},
		{"pt greeting", LangPortuguese, "Bom dia!", IntentGreeting},
		{"pt unknown", LangPortuguese, "xyzzy", IntentUnknown},
		{"en cancel", LangEnglish, "I want to CANCEL my order", IntentCancelRequest},
		{"en status", LangEnglish, "where is my package", IntentStatusInquiry},
		{"es cancel", LangSpanish, "quiero cancelar", IntentCancelRequest},
		{"es complaint", LangSpanish, "llegó roto", IntentComplaint},
		{"unknown language uses english rules", "de", "please cancel", IntentCancelRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.lang, tc.body))
		})
	}
}

// A message asking about the status of a cancellation is a cancellation:
// the cancel lexicon is checked first.
func TestClassifyCancellationOutranksStatus(t *testing.T) {
	got := Classify(LangPortuguese, "qual o status do cancelamento? quero cancelar")
	assert.Equal(t, IntentCancelRequest, got)
}

func TestAutoReplyCoversEveryIntent(t *testing.T) {
	intents := []Intent{
		IntentStatusInquiry, IntentCancelRequest, IntentComplaint,
		IntentGreeting, IntentUnknown,
	}
	for _, lang := range []Language{LangPortuguese, LangEnglish, LangSpanish} {
		for _, intent := range intents {
			assert.NotEmpty(t, AutoReply(lang, intent), "%s/%s", lang, intent)
		}
	}
}
