package model

// ContactMessage is the payload of the add_contact_message procedure.
type ContactMessage struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Message  string `json:"message" validate:"required"`
	Subject  string `json:"subject"`
	DateTime string `json:"dateTime"`
}

type AddContactMessageRequest struct {
	NewMessage ContactMessage `json:"new_message"`
}

// Subscriber is the payload of the add_subscriber procedure.
type Subscriber struct {
	Name              string   `json:"name" validate:"required"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone"`
	Comments          string   `json:"comments"`
	SubscribedAt      string   `json:"subscribedAt"`
	SubscriptionTypes []string `json:"subscriptionTypes" validate:"min=1"`
}

type AddSubscriberRequest struct {
	NewSubscriber Subscriber `json:"new_subscriber"`
}

type EventRegistration struct {
	Name              string `json:"name" validate:"required"`
	Email             string `json:"email" validate:"required,email"`
	Phone             string `json:"phone,omitempty"`
	NumberOfAttendees int    `json:"numberOfAttendees" validate:"gte=0"`
	SpecialRequests   string `json:"specialRequests,omitempty"`
}

type RegistrationResult struct {
	RegistrationID string `json:"registrationId"`
}

type Donation struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	DonorName     string  `json:"donorName,omitempty"`
	DonorEmail    string  `json:"donorEmail,omitempty"`
	IsAnonymous   bool    `json:"isAnonymous"`
	Purpose       string  `json:"purpose"`
	PaymentMethod string  `json:"paymentMethod"`
}

type DonationReceipt struct {
	TransactionID string `json:"transactionId"`
	PaymentURL    string `json:"paymentUrl,omitempty"`
	Status        string `json:"status"`
}

type DonationStatus struct {
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Timestamp string  `json:"timestamp"`
}

type DonationStats struct {
	TotalRaised     float64 `json:"totalRaised"`
	GoalAmount      float64 `json:"goalAmount"`
	RecentDonations []struct {
		Amount    float64 `json:"amount"`
		DonorName string  `json:"donorName,omitempty"`
		Timestamp string  `json:"timestamp"`
		Purpose   string  `json:"purpose"`
	} `json:"recentDonations"`
}

type DeleteResult struct {
	Success bool `json:"success"`
}
