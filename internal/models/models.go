// Package models holds the records shared by the store, the session layer and
// the HTTP handlers. JSON names match the persisted browser documents.
package models

import (
	"fmt"
	"strings"
)

// Role selects which dashboard variant a user sees.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
	RoleStaff   Role = "STAFF"
)

// Roles lists every role in display order.
var Roles = []Role{RolePatient, RoleDoctor, RoleAdmin, RoleStaff}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("models: unknown role %q", s)
}

// Valid reports whether r is one of the four roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// User is immutable after creation.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Email string `json:"email"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Rating      float64 `json:"rating"`
}

// CartItem flattens the product fields next to the quantity.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal is price times quantity.
func (c CartItem) Subtotal() float64 {
	return c.Price * float64(c.Quantity)
}

type Doctor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Specialty    string   `json:"specialty"`
	Image        string   `json:"image"`
	Availability []string `json:"availability"`
}

// Offers reports whether slot is one of the doctor's listed times.
func (d Doctor) Offers(slot string) bool {
	for _, s := range d.Availability {
		if s == slot {
			return true
		}
	}
	return false
}

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type Appointment struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patientId"`
	PatientName   string            `json:"patientName"`
	DoctorID      string            `json:"doctorId"`
	DoctorName    string            `json:"doctorName"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	Status        AppointmentStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus"`
}

// AppointmentPatch is a partial update; nil fields are left untouched.
type AppointmentPatch struct {
	Date          *string            `json:"date,omitempty"`
	Time          *string            `json:"time,omitempty"`
	Status        *AppointmentStatus `json:"status,omitempty"`
	PaymentStatus *PaymentStatus     `json:"paymentStatus,omitempty"`
}

// Apply merges the patch into a copy of a.
func (p AppointmentPatch) Apply(a Appointment) Appointment {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		a.PaymentStatus = *p.PaymentStatus
	}
	return a
}

// ProductPatch is a partial update of a catalog entry.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Image       *string  `json:"image,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

func (p ProductPatch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.Image != nil {
		prod.Image = *p.Image
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Rating != nil {
		prod.Rating = *p.Rating
	}
	return prod
}

// AnalysisResult is the outcome of a skin analysis task.
type AnalysisResult struct {
	Condition      string  `json:"condition"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	ImageURL       string  `json:"imageUrl"`
}
