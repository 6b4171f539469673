// Package main runs end-to-end smoke scenarios against a running API.
//
// Scenarios cover:
//   - Patient signup, cart checkout and appointment booking
//   - Staff queue payment and PDF receipt
//   - Role gates on every dashboard surface
//   - Session invalidation on logout
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go booking-flow # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	apiBase string
	client  = &http.Client{Timeout: 10 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(v interface{}) error {
	return json.Unmarshal(r.body, v)
}

func call(method, path, token string, payload interface{}) (response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return response{}, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, apiBase+path, body)
	if err != nil {
		return response{}, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

// uniqueEmail keeps reruns against a persistent backend from colliding.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@e2e.lumeskin.test", prefix, time.Now().UnixNano())
}

func signup(name, email, role string) (session, error) {
	resp, err := call(http.MethodPost, "/auth/signup", "", map[string]string{"name": name, "email": email, "role": role})
	if err != nil {
		return session{}, err
	}
	if resp.status != http.StatusCreated {
		return session{}, fmt.Errorf("signup returned %d: %s", resp.status, string(resp.body))
	}
	var s session
	return s, resp.decode(&s)
}

func nextWeekday() string {
	d := time.Now().AddDate(0, 0, 7)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

// bookAppointment drives a fresh patient through the booking flow and
// returns the confirmed appointment id.
func bookAppointment(t *T, token string) string {
	resp, err := call(http.MethodPost, "/booking/doctor", token, map[string]string{"doctorId": "d1"})
	if err != nil {
		t.fatalf("select doctor: %v", err)
		return ""
	}
	t.check("doctor selected", resp.status == http.StatusOK)

	date, slot := nextWeekday(), "9:00 AM"
	resp, err = call(http.MethodPut, "/booking/slot", token, map[string]*string{"date": &date, "time": &slot})
	if err != nil {
		t.fatalf("set slot: %v", err)
		return ""
	}
	var view struct {
		CanConfirm bool `json:"canConfirm"`
	}
	_ = resp.decode(&view)
	t.check("slot accepted", resp.status == http.StatusOK && view.CanConfirm)

	resp, err = call(http.MethodPost, "/booking/confirm", token, nil)
	if err != nil {
		t.fatalf("confirm: %v", err)
		return ""
	}
	var confirmed struct {
		Appointment struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"appointment"`
	}
	_ = resp.decode(&confirmed)
	t.check("confirm returns 201", resp.status == http.StatusCreated)
	t.check("appointment is PENDING and UNPAID",
		confirmed.Appointment.Status == "PENDING" && confirmed.Appointment.PaymentStatus == "UNPAID")
	return confirmed.Appointment.ID
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioCartCheckout(t *T) {
	patient, err := signup("E2E Cart", uniqueEmail("cart"), "PATIENT")
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	resp, err := call(http.MethodPost, "/cart/items", patient.Token, map[string]string{"productId": "2"})
	if err != nil {
		t.fatalf("add item: %v", err)
		return
	}
	t.check("item added", resp.status == http.StatusOK)

	resp, _ = call(http.MethodPost, "/cart/items", patient.Token, map[string]string{"productId": "missing"})
	t.check("unknown product is 404", resp.status == http.StatusNotFound)

	resp, _ = call(http.MethodPost, "/cart/checkout", patient.Token, nil)
	t.check("checkout started", resp.status == http.StatusOK)

	resp, _ = call(http.MethodPost, "/cart/checkout/complete", patient.Token, nil)
	t.check("checkout completed", resp.status == http.StatusOK)

	resp, _ = call(http.MethodPost, "/cart/checkout/complete", patient.Token, nil)
	t.check("empty cart cannot complete", resp.status == http.StatusConflict)
}

func scenarioBookingFlow(t *T) {
	patient, err := signup("E2E Patient", uniqueEmail("patient"), "PATIENT")
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	resp, _ := call(http.MethodPost, "/booking/confirm", patient.Token, nil)
	t.check("cannot confirm without a slot", resp.status == http.StatusConflict)

	id := bookAppointment(t, patient.Token)
	if id == "" {
		return
	}

	resp, err = call(http.MethodGet, "/appointments", patient.Token, nil)
	if err != nil {
		t.fatalf("list own: %v", err)
		return
	}
	t.check("appointment listed for patient", strings.Contains(string(resp.body), id))

	resp, _ = call(http.MethodPost, "/booking/return", patient.Token, nil)
	t.check("return to dashboard", resp.status == http.StatusOK)
}

func scenarioStaffQueue(t *T) {
	patient, err := signup("E2E Queue", uniqueEmail("queue"), "PATIENT")
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	id := bookAppointment(t, patient.Token)
	if id == "" {
		return
	}

	staff, err := signup("E2E Staff", uniqueEmail("staff"), "STAFF")
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	resp, _ := call(http.MethodGet, "/staff/appointments", staff.Token, nil)
	t.check("queue lists the booking", resp.status == http.StatusOK && strings.Contains(string(resp.body), id))

	resp, _ = call(http.MethodGet, "/staff/appointments/"+id+"/receipt", staff.Token, nil)
	t.check("receipt refused while unpaid", resp.status == http.StatusConflict)

	resp, _ = call(http.MethodPost, "/staff/appointments/"+id+"/pay", staff.Token, nil)
	t.check("marked paid", resp.status == http.StatusNoContent)

	resp, _ = call(http.MethodGet, "/staff/appointments/"+id+"/receipt", staff.Token, nil)
	t.check("receipt is a PDF", resp.status == http.StatusOK && resp.header.Get("Content-Type") == "application/pdf")

	resp, _ = call(http.MethodDelete, "/staff/appointments/"+id, staff.Token, nil)
	t.check("remove requires confirmation", resp.status == http.StatusBadRequest)

	resp, _ = call(http.MethodDelete, "/staff/appointments/"+id+"?confirm=true", staff.Token, nil)
	t.check("removed after confirmation", resp.status == http.StatusNoContent)
}

func scenarioRoleGates(t *T) {
	patient, err := signup("E2E Gate", uniqueEmail("gate"), "PATIENT")
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	resp, _ := call(http.MethodGet, "/dashboard", "", nil)
	t.check("dashboard requires a session", resp.status == http.StatusUnauthorized)

	for _, path := range []string{"/staff/appointments", "/admin/stats", "/doctor/schedule"} {
		resp, _ = call(http.MethodGet, path, patient.Token, nil)
		t.check("patient forbidden from "+path, resp.status == http.StatusForbidden)
	}

	resp, _ = call(http.MethodGet, "/dashboard", patient.Token, nil)
	t.check("patient dashboard served", resp.status == http.StatusOK)
}

func scenarioLogout(t *T) {
	patient, err := signup("E2E Logout", uniqueEmail("logout"), "PATIENT")
	if err != nil {
		t.fatalf("%v", err)
		return
	}

	resp, _ := call(http.MethodPost, "/auth/logout", patient.Token, nil)
	t.check("logout accepted", resp.status == http.StatusNoContent)

	resp, _ = call(http.MethodGet, "/session", patient.Token, nil)
	t.check("token rejected after logout", resp.status == http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"cart-checkout", scenarioCartCheckout},
		{"booking-flow", scenarioBookingFlow},
		{"staff-queue", scenarioStaffQueue},
		{"role-gates", scenarioRoleGates},
		{"logout", scenarioLogout},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	results := make([]string, 0, len(scenarios))

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "ok  "
		if t.failed > 0 {
			status = "FAIL"
		}
		results = append(results, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		os.Exit(1)
	}
}
