package handler

import (
	"context"

	"sahayak/pkg/bus"
	"sahayak/pkg/state"
)

// Emergency replies with immediate helpline guidance and flags the user's
// state. Fully deterministic: no model call may sit on the emergency path.
type Emergency struct{}

func NewEmergency() *Emergency {
	return &Emergency{}
}

func (h *Emergency) Name() string { return NameEmergency }

var emergencyText = map[string]string{
	"Bengali": "আপনার বার্তা পেয়েছি। এখনই ১১২ নম্বরে ফোন করুন (জাতীয় জরুরি নম্বর)। মহিলা হেল্পলাইন: ১৮১। নিরাপদ জায়গায় থাকুন, আমরা আপনার পাশে আছি।",
	"Hindi":   "आपका संदेश मिल गया है। तुरंत 112 पर कॉल करें (राष्ट्रीय आपातकालीन नंबर)। महिला हेल्पलाइन: 181। सुरक्षित जगह पर रहें, हम आपके साथ हैं।",
	"English": "We received your message. Call 112 now (national emergency number). Women's helpline: 181. Stay somewhere safe. Help is on the way.",
}

func (h *Emergency) Handle(_ context.Context, st *state.ConversationState, _ bus.InboundEvent) (state.Update, Output, error) {
	text, ok := emergencyText[st.LanguageOrDefault()]
	if !ok {
		text = emergencyText["English"]
	}

	flagged := true
	update := state.Update{
		Emergency: &flagged,
		LastRoute: NameEmergency,
	}

	return update, Output{Text: text, Done: true}, nil
}
