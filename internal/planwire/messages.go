package planwire

import "time"

// Dates are "YYYY-MM-DD"; money amounts are decimal strings.

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetProfileRequest struct{}

type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type Structure struct {
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`
	Years     int32  `json:"years"`
	Budget    string `json:"budget"`
}

type Recipient struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	AddressLine  string `json:"address_line"`
	Suburb       string `json:"suburb"`
	Postcode     string `json:"postcode"`
	Instructions string `json:"instructions,omitempty"`
}

type DeliveryEvent struct {
	ID           string  `json:"id"`
	PlanID       string  `json:"plan_id"`
	Index        int32   `json:"index"`
	DeliveryDate string  `json:"delivery_date"`
	Message      *string `json:"message"`
}

type Plan struct {
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	Structure         Structure         `json:"structure"`
	Recipient         *Recipient        `json:"recipient,omitempty"`
	DraftCardMessages map[string]string `json:"draft_card_messages,omitempty"`
	Events            []*DeliveryEvent  `json:"events,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type CreatePlanRequest struct {
	Structure Structure  `json:"structure"`
	Recipient *Recipient `json:"recipient,omitempty"`
}

type ListPlansRequest struct{}

type ListPlansResponse struct {
	Plans []*Plan `json:"plans"`
}

type GetPlanRequest struct {
	PlanID string `json:"plan_id"`
}

type GetProjectedDeliveriesRequest struct {
	PlanID string `json:"plan_id"`
}

type ProjectedDelivery struct {
	Index int32  `json:"index"`
	Date  string `json:"date"`
}

type GetProjectedDeliveriesResponse struct {
	Deliveries []*ProjectedDelivery `json:"deliveries"`
}

// UpdatePlanRequest is a partial update: absent fields stay as they are.
// DraftCardMessages has no omitempty so an empty map still clears the drafts.
type UpdatePlanRequest struct {
	PlanID            string            `json:"plan_id"`
	Frequency         *string           `json:"frequency,omitempty"`
	StartDate         *string           `json:"start_date,omitempty"`
	Years             *int32            `json:"years,omitempty"`
	Budget            *string           `json:"budget,omitempty"`
	Recipient         *Recipient        `json:"recipient,omitempty"`
	DraftCardMessages map[string]string `json:"draft_card_messages"`
}

type UpdateEventRequest struct {
	EventID string `json:"event_id"`
	Message string `json:"message"`
}

type CalculatePriceRequest struct {
	PlanID    string     `json:"plan_id,omitempty"`
	Structure *Structure `json:"structure,omitempty"`
}

type PriceQuote struct {
	Amount    string            `json:"amount"`
	Breakdown map[string]string `json:"breakdown,omitempty"`
}

type ActivatePlanRequest struct {
	PlanID string `json:"plan_id"`
}
