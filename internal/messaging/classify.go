package messaging

import "strings"

// Intent is the classified purpose of an inbound customer message.
type Intent string

const (
	IntentStatusInquiry Intent = "status_inquiry"
	IntentCancelRequest Intent = "cancel_request"
	IntentComplaint     Intent = "complaint"
	IntentGreeting      Intent = "greeting"
	IntentUnknown       Intent = "unknown"
)

// lexicons map keywords to intents per language. Matching is substring
// based over the lowercased message; order matters — cancellation outranks
// a generic status question when both appear.
var lexicons = map[Language][]struct {
	intent   Intent
	keywords []string
}{
	LangPortuguese: {
		{IntentCancelRequest, []string{"cancelar", "cancela", "desistir", "reembolso", "estorno"}},
		{IntentComplaint, []string{"reclamação", "problema", "defeito", "errado", "atrasado", "péssimo"}},
		{IntentStatusInquiry, []string{"status", "rastreio", "rastreamento", "cadê", "onde está", "previsão", "entrega"}},
		{IntentGreeting, []string{"oi", "olá", "bom dia", "boa tarde", "boa noite"}},
	},
	LangEnglish: {
		{IntentCancelRequest, []string{"cancel", "refund", "money back"}},
		{IntentComplaint, []string{"complaint", "problem", "broken", "wrong", "late", "terrible"}},
		{IntentStatusInquiry, []string{"status", "tracking", "where is", "when will", "delivery", "shipped"}},
		{IntentGreeting, []string{"hi", "hello", "good morning", "good afternoon", "good evening"}},
	},
	LangSpanish: {
		{IntentCancelRequest, []string{"cancelar", "reembolso", "devolución"}},
		{IntentComplaint, []string{"queja", "problema", "roto", "equivocado", "tarde", "pésimo"}},
		{IntentStatusInquiry, []string{"estado", "seguimiento", "dónde está", "cuándo llega", "entrega"}},
		{IntentGreeting, []string{"hola", "buenos días", "buenas tardes", "buenas noches"}},
	},
}

// Classify picks the first intent whose lexicon matches the message.
func Classify(lang Language, body string) Intent {
	rules, ok := lexicons[lang]
	if !ok {
		rules = lexicons[LangEnglish]
	}
	lower := strings.ToLower(body)
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}

// autoReplies are the canned responses sent back per classified intent.
var autoReplies = map[Language]map[Intent]string{
	LangPortuguese: {
		IntentStatusInquiry: "Seu pedido está a caminho! Enviaremos o código de rastreio assim que disponível.",
		IntentCancelRequest: "Recebemos seu pedido de cancelamento e já estamos processando.",
		IntentComplaint:     "Sentimos muito! Nossa equipe vai analisar e responder em até 24h.",
		IntentGreeting:      "Olá! Como podemos ajudar com seu pedido?",
		IntentUnknown:       "Recebemos sua mensagem. Nossa equipe responderá em breve.",
	},
	LangEnglish: {
		IntentStatusInquiry: "Your order is on its way! We'll send the tracking code as soon as it's available.",
		IntentCancelRequest: "We received your cancellation request and are processing it.",
		IntentComplaint:     "We're sorry! Our team will review this and reply within 24h.",
		IntentGreeting:      "Hello! How can we help with your order?",
		IntentUnknown:       "We received your message. Our team will reply shortly.",
	},
	LangSpanish: {
		IntentStatusInquiry: "¡Tu pedido está en camino! Enviaremos el código de seguimiento en cuanto esté disponible.",
		IntentCancelRequest: "Recibimos tu solicitud de cancelación y ya la estamos procesando.",
		IntentComplaint:     "¡Lo sentimos! Nuestro equipo lo revisará y responderá dentro de 24h.",
		IntentGreeting:      "¡Hola! ¿Cómo podemos ayudarte con tu pedido?",
		IntentUnknown:       "Recibimos tu mensaje. Nuestro equipo responderá pronto.",
	},
}

// AutoReply returns the canned response for an intent in a language.
func AutoReply(lang Language, intent Intent) string {
	byIntent, ok := autoReplies[lang]
	if !ok {
		byIntent = autoReplies[LangEnglish]
	}
	return byIntent[intent]
}
