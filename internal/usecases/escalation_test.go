package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldEscalate_Cascade(t *testing.T) {
	p := NewEscalationPolicy(5)

	cases := []struct {
		msg    string
		hist   int
		want   bool
		reason string
	}{
		{"I need a refund, this is urgent", 0, true, ReasonUrgentKeyword},
		{"Ma commande n'est pas arrivée", 0, true, ReasonUrgentKeyword},
		{"Comment ça marche exactement ?", 0, true, ReasonComplexQuestion},
		{"Vous faites une réduction ?", 0, true, ReasonNegotiation},
		{"Je veux parler à quelqu'un", 0, true, ReasonHumanRequested},
		{"Can I talk to a real person?", 0, true, ReasonHumanRequested},
		{"Bonjour", 0, false, ""},
		{"What's the price of the geekbar?", 0, false, ""},
		{"Bonjour", 4, false, ""},
		{"Bonjour", 5, true, ReasonTooLong},
		{"Bonjour", 10, true, ReasonTooLong},
	}
	for _, tc := range cases {
		got := p.ShouldEscalate(tc.msg, tc.hist)
		assert.Equal(t, tc.want, got.Escalate, tc.msg)
		assert.Equal(t, tc.reason, got.Reason, tc.msg)
	}
}

func TestShouldEscalate_FirstTriggerWins(t *testing.T) {
	p := NewEscalationPolicy(5)
	// matches urgent, negotiation and human lists at once
	got := p.ShouldEscalate("problème de prix, je veux parler au patron", 7)
	assert.Equal(t, ReasonUrgentKeyword, got.Reason)

	got = p.ShouldEscalate("une offre ? sinon le manager", 0)
	assert.Equal(t, ReasonNegotiation, got.Reason)
}

func TestShouldEscalate_Deterministic(t *testing.T) {
	p := NewEscalationPolicy(5)
	first := p.ShouldEscalate("explique-moi la différence entre les deux", 2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.ShouldEscalate("explique-moi la différence entre les deux", 2))
	}
}

func TestNewEscalationPolicy_DefaultThreshold(t *testing.T) {
	p := NewEscalationPolicy(0)
	assert.True(t, p.ShouldEscalate("ok", 5).Escalate)
	assert.False(t, p.ShouldEscalate("ok", 4).Escalate)
}
