package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" staff ")
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, r)

	_, err = ParseRole("nurse")
	assert.Error(t, err)
	assert.False(t, Role("nurse").Valid())
	assert.True(t, RoleAdmin.Valid())
}

func TestCartItemFlattensProduct(t *testing.T) {
	item := CartItem{Product: Product{ID: "1", Name: "Hydrating Cleanser", Price: 25}, Quantity: 2}
	raw, err := json.Marshal(item)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "1", decoded["id"])
	assert.EqualValues(t, 2, decoded["quantity"])
	assert.Equal(t, 50.0, item.Subtotal())
}

func TestAppointmentWireNames(t *testing.T) {
	raw := `{"id":"a1","patientId":"p1","patientName":"Pat","doctorId":"d1","doctorName":"Dr. Sarah Smith","date":"2025-01-01","time":"9:00 AM","status":"PENDING","paymentStatus":"UNPAID"}`
	var appt Appointment
	require.NoError(t, json.Unmarshal([]byte(raw), &appt))
	assert.Equal(t, "p1", appt.PatientID)
	assert.Equal(t, PaymentUnpaid, appt.PaymentStatus)
}

func TestAppointmentPatchLeavesNilFields(t *testing.T) {
	paid := PaymentPaid
	base := Appointment{ID: "a1", Date: "2025-01-01", Time: "9:00 AM", Status: StatusPending, PaymentStatus: PaymentUnpaid}
	got := AppointmentPatch{PaymentStatus: &paid}.Apply(base)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Equal(t, base.Date, got.Date)
	assert.Equal(t, StatusPending, got.Status)
}

func TestProductPatch(t *testing.T) {
	price := 39.5
	got := ProductPatch{Price: &price}.Apply(Product{ID: "2", Name: "Retinol Serum", Price: 45})
	assert.Equal(t, 39.5, got.Price)
	assert.Equal(t, "Retinol Serum", got.Name)
}

func TestDoctorOffers(t *testing.T) {
	d := Doctor{Availability: []string{"9:00 AM", "2:00 PM"}}
	assert.True(t, d.Offers("2:00 PM"))
	assert.False(t, d.Offers("3:00 PM"))
}

func TestNewShortID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewShortID()
		require.Len(t, id, ShortIDLength)
		for _, r := range id {
			assert.Contains(t, shortIDAlphabet, string(r))
		}
		seen[id] = true
	}
	assert.Greater(t, len(seen), 190)
}
