package domain

import "time"

type AdvertStatus string

const (
	StatusPending AdvertStatus = "Pending"
	StatusActive  AdvertStatus = "Active"
)

// ConfirmStatus is the outcome requested when confirming an advert.
// Rejected adverts are deleted, so it has no AdvertStatus counterpart.
type ConfirmStatus string

const (
	ConfirmActive   ConfirmStatus = "Active"
	ConfirmRejected ConfirmStatus = "Rejected"
)

func (s ConfirmStatus) Valid() bool {
	return s == ConfirmActive || s == ConfirmRejected
}

type Advert struct {
	ID               string       `json:"id"`
	CreationDateTime time.Time    `json:"creation_date_time"`
	Status           AdvertStatus `json:"status"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Price            float64      `json:"price"`
}

type CreateAdvertInput struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=1000"`
	Price       float64 `json:"price" validate:"gte=0"`
}

type ConfirmAdvertInput struct {
	ID     string        `json:"id" validate:"required"`
	Status ConfirmStatus `json:"status" validate:"required,oneof=Active Rejected"`
}

// AdvertConfirmedMessage is the payload published once per confirmation.
type AdvertConfirmedMessage struct {
	ID    string `json:"Id"`
	Title string `json:"Title"`
}
