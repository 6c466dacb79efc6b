package usecases

import "strings"

const (
	ReasonUrgentKeyword   = "urgent keyword"
	ReasonComplexQuestion = "complex question"
	ReasonNegotiation     = "negotiation"
	ReasonHumanRequested  = "human requested"
	ReasonTooLong         = "conversation too long"
)

type escalationTrigger struct {
	reason   string
	keywords []string
}

// EscalationDecision tells the selector whether a human should take over.
type EscalationDecision struct {
	Escalate bool
	Reason   string
}

// EscalationPolicy is an ordered cascade; the first trigger that matches wins.
type EscalationPolicy struct {
	triggers         []escalationTrigger
	historyThreshold int
}

func NewEscalationPolicy(historyThreshold int) *EscalationPolicy {
	if historyThreshold <= 0 {
		historyThreshold = 5
	}
	return &EscalationPolicy{
		historyThreshold: historyThreshold,
		triggers: []escalationTrigger{
			{ReasonUrgentKeyword, []string{
				"plainte", "réclamation", "problème", "défaut", "cassé", "marche pas", "remboursement",
				"argent", "facture", "commande", "livraison", "urgent", "important", "grave", "sérieux",
				"refund", "complaint", "broken", "invoice", "money back",
			}},
			{ReasonComplexQuestion, []string{
				"comment ça marche", "explique-moi", "détaillé", "spécifique", "technique", "mécanisme",
				"fonctionnement", "différence entre", "how does it work", "explain", "difference between",
			}},
			{ReasonNegotiation, []string{
				"prix", "coût", "tarif", "réduction", "promotion", "offre", "moins cher", "bon plan",
				"deal", "marchandage", "discount", "negotiate", "cheaper",
			}},
			{ReasonHumanRequested, []string{
				"parler à", "vraie personne", "humain", "responsable", "manager", "patron", "propriétaire",
				"directeur", "talk to", "speak to", "real person", "human",
			}},
		},
	}
}

// ShouldEscalate is pure: same message and history length, same answer.
func (p *EscalationPolicy) ShouldEscalate(message string, historyLen int) EscalationDecision {
	lower := strings.ToLower(message)
	for _, t := range p.triggers {
		if containsAny(lower, t.keywords) {
			return EscalationDecision{Escalate: true, Reason: t.reason}
		}
	}
	if historyLen >= p.historyThreshold {
		return EscalationDecision{Escalate: true, Reason: ReasonTooLong}
	}
	return EscalationDecision{}
}
