package dto

import (
	"time"

	"donation-payments/internal/core/domain"
)

// RegisterRequest is the request body for donor registration.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=150"`
	Email     string `json:"email" binding:"omitempty,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	Password2 string `json:"password2" binding:"required" sanitize:"-"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	Expiry      int64        `json:"expiry"` // Unix timestamp
	User        UserResponse `json:"user"`
}

// CreateIntentRequest is the request body for payment intent creation.
type CreateIntentRequest struct {
	DonationID string `json:"donation_id" binding:"required,uuid"`
}

// CreateIntentResponse carries what the client needs to confirm the payment.
type CreateIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PaymentID    string `json:"paymentId"`
}

// PaymentSummaryResponse is one row of the donor's history.
type PaymentSummaryResponse struct {
	ID            string `json:"id"`
	DonationTitle string `json:"donation_title"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// MyDonationsResponse wraps the donor's history.
type MyDonationsResponse struct {
	Items []PaymentSummaryResponse `json:"items"`
}

// PublishableKeyResponse exposes the provider's client-side key.
type PublishableKeyResponse struct {
	PublishableKey string `json:"publishableKey"`
}

// MarkRefundedRequest lists payments to flag as refunded.
type MarkRefundedRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=500,dive,uuid"`
}

// MarkRefundedResponse reports how many payments changed.
type MarkRefundedResponse struct {
	Updated int64 `json:"updated"`
}

// ReplaceImageRequest sets or clears a donation's image key.
type ReplaceImageRequest struct {
	ImageKey *string `json:"image_key" binding:"omitempty,object_key,max=512"`
}

// DonationResponse is the catalog view of a donation.
type DonationResponse struct {
	ID          string  `json:"id"`
	CategoryID  string  `json:"category_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	ImageKey    *string `json:"image_key"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// CategoryResponse is a category with its active donations.
type CategoryResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	CreatedAt string             `json:"created_at"`
	Donations []DonationResponse `json:"donations"`
}

// StripeEventResponse is one ledger row in the admin listing.
type StripeEventResponse struct {
	EventID         string  `json:"event_id"`
	EventType       string  `json:"event_type"`
	PaymentIntentID *string `json:"payment_intent_id"`
	ReceivedAt      string  `json:"received_at"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
	}
}

func NewPaymentSummaryResponse(s domain.PaymentSummary) PaymentSummaryResponse {
	return PaymentSummaryResponse{
		ID:            s.ID.String(),
		DonationTitle: s.DonationTitle,
		Amount:        s.Amount.StringFixed(2),
		Currency:      s.Currency,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewDonationResponse(d *domain.Donation) DonationResponse {
	return DonationResponse{
		ID:          d.ID.String(),
		CategoryID:  d.CategoryID.String(),
		Title:       d.Title,
		Description: d.Description,
		Amount:      d.Amount.StringFixed(2),
		ImageKey:    d.ImageKey,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewCategoryResponse(c domain.Category) CategoryResponse {
	donations := make([]DonationResponse, 0, len(c.Donations))
	for i := range c.Donations {
		donations = append(donations, NewDonationResponse(&c.Donations[i]))
	}
	return CategoryResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Slug:      c.Slug,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Donations: donations,
	}
}

func NewStripeEventResponse(e domain.StripeEvent) StripeEventResponse {
	return StripeEventResponse{
		EventID:         e.EventID,
		EventType:       e.EventType,
		PaymentIntentID: e.PaymentIntentID,
		ReceivedAt:      e.ReceivedAt.UTC().Format(time.RFC3339),
	}
}
