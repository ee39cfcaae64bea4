package messaging

import (
	"fmt"
	"strings"
)

// Language is a customer-facing message language.
type Language string

const (
	LangPortuguese Language = "pt"
	LangEnglish    Language = "en"
	LangSpanish    Language = "es"
)

// DetectLanguage maps a phone number's country code to a message language.
// English is the fallback for everything unrecognized.
func DetectLanguage(phone string) Language {
	p := strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(p, "+55"), strings.HasPrefix(p, "+351"):
		return LangPortuguese
	case strings.HasPrefix(p, "+34"), strings.HasPrefix(p, "+52"),
		strings.HasPrefix(p, "+54"), strings.HasPrefix(p, "+56"),
		strings.HasPrefix(p, "+57"):
		return LangSpanish
	default:
		return LangEnglish
	}
}

// MessageKind selects a template.
type MessageKind string

const (
	MsgOrderConfirmation    MessageKind = "order_confirmation"
	MsgShippingNotification MessageKind = "shipping_notification"
	MsgDeliveryNotification MessageKind = "delivery_notification"
	MsgCancellationNotice   MessageKind = "cancellation_notice"
	MsgReviewReminder       MessageKind = "review_reminder"
)

// templates use {placeholder} substitution; every language carries the same
// placeholder set per kind.
var templates = map[Language]map[MessageKind]string{
	LangPortuguese: {
		MsgOrderConfirmation:    "Olá {name}! Recebemos seu pedido {order} e ele já está em preparação. 🎉",
		MsgShippingNotification: "Boas notícias, {name}! Seu pedido {order} foi enviado. Código de rastreio: {tracking}.",
		MsgDeliveryNotification: "Seu pedido {order} foi entregue! Esperamos que goste. 💛",
		MsgCancellationNotice:   "Seu pedido {order} foi cancelado. Qualquer valor pago será estornado.",
		MsgReviewReminder:       "Oi {name}! O que achou do pedido {order}? Sua avaliação nos ajuda muito. ⭐",
	},
	LangEnglish: {
		MsgOrderConfirmation:    "Hi {name}! We received your order {order} and it is being prepared. 🎉",
		MsgShippingNotification: "Good news, {name}! Your order {order} has shipped. Tracking code: {tracking}.",
		MsgDeliveryNotification: "Your order {order} has been delivered! We hope you love it. 💛",
		MsgCancellationNotice:   "Your order {order} has been cancelled. Any payment will be refunded.",
		MsgReviewReminder:       "Hi {name}! How was your order {order}? Your review helps us a lot. ⭐",
	},
	LangSpanish: {
		MsgOrderConfirmation:    "¡Hola {name}! Recibimos tu pedido {order} y ya está en preparación. 🎉",
		MsgShippingNotification: "¡Buenas noticias, {name}! Tu pedido {order} fue enviado. Código de seguimiento: {tracking}.",
		MsgDeliveryNotification: "¡Tu pedido {order} fue entregado! Esperamos que te guste. 💛",
		MsgCancellationNotice:   "Tu pedido {order} fue cancelado. Cualquier pago será reembolsado.",
		MsgReviewReminder:       "¡Hola {name}! ¿Qué te pareció el pedido {order}? Tu reseña nos ayuda mucho. ⭐",
	},
}

// Render produces the customer message for one kind in one language.
// Unknown languages fall back to English; an unknown kind is a programming
// error and returns one.
func Render(lang Language, kind MessageKind, vars map[string]string) (string, error) {
	byKind, ok := templates[lang]
	if !ok {
		byKind = templates[LangEnglish]
	}
	tmpl, ok := byKind[kind]
	if !ok {
		return "", fmt.Errorf("no template for message kind %q", kind)
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}
