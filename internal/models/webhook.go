package models

// BillingEvent is the outer webhook body sent by the billing provider.
type BillingEvent struct {
	Event   string         `json:"event"`
	Payload BillingPayload `json:"payload"`
}

// BillingPayload carries event-specific objects. Depending on the event
// shape the provider wraps each object in an "entity" envelope, and
// recorded fixtures also show the flat form, so both are accepted.
type BillingPayload struct {
	Payment      *PaymentObject      `json:"payment"`
	Subscription *SubscriptionObject `json:"subscription"`
}

// PaymentObject 支付对象
type PaymentObject struct {
	Email  string         `json:"email"`
	Entity *PaymentEntity `json:"entity"`
}

type PaymentEntity struct {
	Email string `json:"email"`
}

// PayerEmail returns the payer email, preferring the entity-wrapped form.
func (p *PaymentObject) PayerEmail() string {
	if p == nil {
		return ""
	}
	if p.Entity != nil && p.Entity.Email != "" {
		return p.Entity.Email
	}
	return p.Email
}

// SubscriptionObject 订阅对象
type SubscriptionObject struct {
	ID       string              `json:"id"`
	ChargeAt int64               `json:"charge_at"`
	Entity   *SubscriptionEntity `json:"entity"`
}

type SubscriptionEntity struct {
	ID       string `json:"id"`
	ChargeAt int64  `json:"charge_at"`
}

// SubscriptionID returns the subscription identifier, preferring the
// entity-wrapped form.
func (s *SubscriptionObject) SubscriptionID() string {
	if s == nil {
		return ""
	}
	if s.Entity != nil && s.Entity.ID != "" {
		return s.Entity.ID
	}
	return s.ID
}

// NextChargeAt returns the next charge unix timestamp, 0 when the
// provider omitted it for this event shape.
func (s *SubscriptionObject) NextChargeAt() int64 {
	if s == nil {
		return 0
	}
	if s.Entity != nil && s.Entity.ChargeAt != 0 {
		return s.Entity.ChargeAt
	}
	return s.ChargeAt
}
