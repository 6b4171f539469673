package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lumeskin-platform/internal/config"
	"github.com/wolfman30/lumeskin-platform/internal/kv"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/internal/store"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// sharedApp returns one memory-backed app for every command in a test so
// state survives between invocations.
func sharedApp(t *testing.T) (*bootstrap.App, buildFunc) {
	t.Helper()
	cfg := &appconfig.Config{
		Env:            "test",
		KVBackend:      kv.BackendMemory,
		KeyPrefix:      "derma_",
		AIProvider:     bootstrap.ProviderNone,
		UseMemoryQueue: true,
		WorkerCount:    1,
	}
	app, err := bootstrap.Build(context.Background(), cfg, logging.New("error"), bootstrap.Options{AWS: aws.Config{Region: "us-east-1"}})
	require.NoError(t, err)
	return app, func(context.Context) (*bootstrap.App, error) { return app, nil }
}

func run(t *testing.T, build buildFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(build)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedReportsCounts(t *testing.T) {
	_, build := sharedApp(t)
	out, err := run(t, build, "seed")
	require.NoError(t, err)
	assert.Equal(t, "users=1 products=4 appointments=0\n", out)
}

func TestSeedResetDropsData(t *testing.T) {
	app, build := sharedApp(t)
	ctx := context.Background()
	require.NoError(t, app.Store.AddUser(ctx, models.User{ID: "u2", Name: "Pat", Role: models.RolePatient, Email: "pat@example.com"}))

	out, err := run(t, build, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "users=2")

	out, err = run(t, build, "seed", "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "users=1")
}

func TestUsersListTableAndJSON(t *testing.T) {
	_, build := sharedApp(t)

	out, err := run(t, build, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, store.SeedAdmin.Email)

	out, err = run(t, build, "users", "list", "--json")
	require.NoError(t, err)
	var users []models.User
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	assert.Equal(t, []models.User{store.SeedAdmin}, users)
}

func TestAppointmentsList(t *testing.T) {
	app, build := sharedApp(t)
	require.NoError(t, app.Store.SaveAppointment(context.Background(), models.Appointment{
		ID: "a1", PatientID: "p1", PatientName: "Pat", DoctorID: "d1", DoctorName: "Dr. Sarah Smith",
		Date: "2025-03-01", Time: "9:00 AM", Status: models.StatusPending, PaymentStatus: models.PaymentUnpaid,
	}))

	out, err := run(t, build, "appointments", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Dr. Sarah Smith")
	assert.Contains(t, out, string(models.PaymentUnpaid))
}

func TestProductsSetPrice(t *testing.T) {
	app, build := sharedApp(t)

	out, err := run(t, build, "products", "set-price", "2", "49.5")
	require.NoError(t, err)
	assert.Equal(t, "2 Retinol Serum now 49.50\n", out)

	products, err := app.Store.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 49.5, products[1].Price)

	out, err = run(t, build, "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "49.50")
}

func TestProductsSetPriceErrors(t *testing.T) {
	_, build := sharedApp(t)

	_, err := run(t, build, "products", "set-price", "2", "cheap")
	assert.ErrorContains(t, err, "invalid price")

	_, err = run(t, build, "products", "set-price", "99", "10")
	assert.Error(t, err)

	_, err = run(t, build, "products", "set-price", "2")
	assert.Error(t, err)
}
