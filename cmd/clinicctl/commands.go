package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/lumeskin-platform/internal/app/bootstrap"
	"github.com/wolfman30/lumeskin-platform/internal/models"
)

type buildFunc func(ctx context.Context) (*bootstrap.App, error)

// cliActor is recorded in the audit trail for changes made from the shell.
var cliActor = models.User{ID: "clinicctl", Name: "clinicctl", Role: models.RoleAdmin}

type rootOptions struct {
	build  buildFunc
	asJSON bool
}

func newRootCmd(build buildFunc) *cobra.Command {
	opts := &rootOptions{build: build}

	root := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Inspect and maintain the Lume Skin clinic store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newSeedCmd(opts),
		newUsersCmd(opts),
		newAppointmentsCmd(opts),
		newProductsCmd(opts),
	)
	return root
}

// withApp builds the application for one command and closes it afterwards.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := o.build(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	return fn(ctx, app)
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed empty collections with the default admin and catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				// Build already seeds absent collections.
				if reset {
					if err := app.Store.Reset(ctx); err != nil {
						return fmt.Errorf("reset store: %w", err)
					}
				}
				users, err := app.Store.Users(ctx)
				if err != nil {
					return err
				}
				products, err := app.Store.Products(ctx)
				if err != nil {
					return err
				}
				appts, err := app.Store.Appointments(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "users=%d products=%d appointments=%d\n", len(users), len(products), len(appts))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "drop all collections before seeding")
	return cmd
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage users"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				users, err := app.Admin.Users(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), users)
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "ROLE", "EMAIL"}, len(users), func(i int) []string {
					u := users[i]
					return []string{u.ID, u.Name, string(u.Role), u.Email}
				})
			})
		},
	})
	return cmd
}

func newAppointmentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "appointments", Short: "Manage appointments"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every appointment in booking order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				appts, err := app.Queue.List(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), appts)
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "PATIENT", "DOCTOR", "DATE", "TIME", "STATUS", "PAYMENT"}, len(appts), func(i int) []string {
					a := appts[i]
					return []string{a.ID, a.PatientName, a.DoctorName, a.Date, a.Time, string(a.Status), string(a.PaymentStatus)}
				})
			})
		},
	})
	return cmd
}

func newProductsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Manage the product catalog"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List catalog products",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
					products, err := app.Store.Products(ctx)
					if err != nil {
						return err
					}
					if opts.asJSON {
						return printJSON(cmd.OutOrStdout(), products)
					}
					return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CATEGORY", "PRICE"}, len(products), func(i int) []string {
						p := products[i]
						return []string{p.ID, p.Name, p.Category, strconv.FormatFloat(p.Price, 'f', 2, 64)}
					})
				})
			},
		},
		&cobra.Command{
			Use:   "set-price <product-id> <price>",
			Short: "Change a product's price",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				price, err := strconv.ParseFloat(args[1], 64)
				if err != nil || price < 0 {
					return fmt.Errorf("invalid price %q", args[1])
				}
				return opts.withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
					product, err := app.Admin.SetPrice(ctx, cliActor, args[0], price)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s now %.2f\n", product.ID, product.Name, product.Price)
					return nil
				})
			},
		},
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, header []string, rows int, row func(i int) []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for i := 0; i < rows; i++ {
		writeRow(tw, row(i))
	}
	return tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}
