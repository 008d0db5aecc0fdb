package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phoenixfitness/phoenix-stack/auth/pkg/tokens"
	"github.com/phoenixfitness/phoenix-stack/cli/pkg/output"
	"github.com/phoenixfitness/phoenix-stack/common/models"
)

const dateLayout = "2006-01-02 15:04"

func newClassesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"classes"},
		Short:   "Browse, book and manage studio classes",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every class",
		Args:    cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			classes, err := a.client.Classes().List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			return a.out.Render(classes, classTable(classes))
		}),
	}

	upcoming := &cobra.Command{
		Use:   "upcoming",
		Short: "List scheduled classes that have not started",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			classes, err := a.client.Classes().Upcoming(ctx)
			if err != nil {
				return fmt.Errorf("failed to list upcoming sessions: %w", err)
			}
			return a.out.Render(classes, classTable(classes))
		}),
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				s, err := a.client.Classes().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get session: %w", err)
				}
				return a.out.Render(s, classTable([]models.Session{*s}))
			})(cmd, args)
		},
	}

	cmd.AddCommand(list, upcoming, get,
		newClassBookCmd(o),
		newClassCreateCmd(o),
		newClassUpdateCmd(o),
		newClassDeleteCmd(o),
	)
	return cmd
}

func classTable(classes []models.Session) func() *output.Table {
	return func() *output.Table {
		t := output.NewTable("ID", "TITLE", "INSTRUCTOR", "WHEN", "MIN", "SPOTS", "PRICE", "STATUS")
		for _, s := range classes {
			t.AddRow(s.ID, s.Title, s.InstructorName, s.ScheduledDate.Local().Format(dateLayout),
				s.Duration, s.SpotsLeft(), money(s.Price), s.Status)
		}
		return t
	}
}

// newClassBookCmd pays for a class and books it: a payment order for the
// class price is created first and its id goes with the booking. A payment
// id from the checkout is verified against the order before booking.
func newClassBookCmd(o *rootOptions) *cobra.Command {
	var (
		req       models.BookingRequest
		signature string
	)
	cmd := &cobra.Command{
		Use:   "book <id>",
		Short: "Book a place in a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAny); err != nil {
					return err
				}
				class, err := a.client.Classes().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get session: %w", err)
				}
				if class.SpotsLeft() == 0 {
					return fmt.Errorf("%q is full", class.Title)
				}

				if class.Price > 0 {
					order, err := a.client.Payments().CreateOrder(ctx, models.CreateOrderRequest{
						SessionID: class.ID,
						Amount:    class.Price,
					})
					if err != nil {
						return fmt.Errorf("failed to create payment order: %w", err)
					}
					req.OrderID = order.OrderID

					if req.PaymentID != "" {
						err := a.client.Payments().Verify(ctx, models.VerifyPaymentRequest{
							PaymentID: req.PaymentID,
							OrderID:   order.OrderID,
							Signature: signature,
						})
						if err != nil {
							return fmt.Errorf("failed to verify payment: %w", err)
						}
					}
				}

				booking, err := a.client.Classes().Book(ctx, id, req)
				if err != nil {
					return fmt.Errorf("failed to book session: %w", err)
				}
				if a.out.Structured() {
					return a.out.Render(booking, nil)
				}
				a.out.Success("Booked %q on %s (booking %d, %s)", class.Title,
					class.ScheduledDate.Local().Format(dateLayout), booking.ID, booking.Status)
				if booking.MeetLink != "" {
					a.out.Info("Join at %s", booking.MeetLink)
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&req.PaymentMethod, "payment-method", "CARD", "Payment method")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Notes for the instructor")
	cmd.Flags().StringVar(&req.PaymentID, "payment-id", "", "Payment id returned by the checkout")
	cmd.Flags().StringVar(&signature, "signature", "", "Checkout signature for --payment-id")
	return cmd
}

func newClassCreateCmd(o *rootOptions) *cobra.Command {
	var (
		req  models.SessionRequest
		date string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a class (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDate(date)
			if err != nil {
				return err
			}
			req.ScheduledDate = models.Timestamp{Time: when}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				s, err := a.client.Classes().Create(ctx, req)
				if err != nil {
					return fmt.Errorf("failed to create session: %w", err)
				}
				a.out.Success("Scheduled %q as session %d", s.Title, s.ID)
				return nil
			})(cmd, args)
		},
	}
	bindClassFlags(cmd, &req, &date)
	return cmd
}

func bindClassFlags(cmd *cobra.Command, req *models.SessionRequest, date *string) {
	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "Class title")
	f.StringVar(&req.Description, "description", "", "Description")
	f.StringVar(&req.InstructorName, "instructor", "", "Instructor name")
	f.StringVar(date, "date", "", "Start time, RFC 3339 or \"YYYY-MM-DD HH:MM\" local time")
	f.IntVar(&req.Duration, "duration", 60, "Duration in minutes")
	f.IntVar(&req.MaxParticipants, "max", 0, "Maximum participants")
	f.Float64Var(&req.Price, "price", 0, "Price")
	f.StringVar(&req.ImageURL, "image-url", "", "Image URL")
	f.StringVar(&req.MeetLink, "meet-link", "", "Online meeting link")
}

// newClassUpdateCmd reschedules or edits a class; fields without a flag keep
// their current value.
func newClassUpdateCmd(o *rootOptions) *cobra.Command {
	var (
		in   models.SessionRequest
		date string
	)
	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Edit a class (admin)",
		Example: "  phoenix sessions update 12 --date \"2025-06-01 07:00\" --max 20",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var when time.Time
			if f.Changed("date") {
				if when, err = parseDate(date); err != nil {
					return err
				}
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				cur, err := a.client.Classes().Get(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to get session: %w", err)
				}

				req := cur.Request()
				if f.Changed("title") {
					req.Title = in.Title
				}
				if f.Changed("description") {
					req.Description = in.Description
				}
				if f.Changed("instructor") {
					req.InstructorName = in.InstructorName
				}
				if f.Changed("date") {
					req.ScheduledDate = models.Timestamp{Time: when}
				}
				if f.Changed("duration") {
					req.Duration = in.Duration
				}
				if f.Changed("max") {
					req.MaxParticipants = in.MaxParticipants
				}
				if f.Changed("price") {
					req.Price = in.Price
				}
				if f.Changed("image-url") {
					req.ImageURL = in.ImageURL
				}
				if f.Changed("meet-link") {
					req.MeetLink = in.MeetLink
				}

				s, err := a.client.Classes().Update(ctx, id, req)
				if err != nil {
					return fmt.Errorf("failed to update session: %w", err)
				}
				if a.out.Structured() {
					return a.out.Render(s, nil)
				}
				a.out.Success("Updated %q (session %d) on %s", s.Title, s.ID,
					s.ScheduledDate.Local().Format(dateLayout))
				return nil
			})(cmd, args)
		},
	}
	bindClassFlags(cmd, &in, &date)
	return cmd
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, use RFC 3339 or %q", s, dateLayout)
}

func newClassDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a class (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				if err := a.client.Classes().Delete(ctx, id); err != nil {
					return fmt.Errorf("failed to delete session: %w", err)
				}
				a.out.Success("Deleted session %d", id)
				return nil
			})(cmd, args)
		},
	}
}

func newBookingsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "Show and manage class bookings",
	}

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List your bookings",
		Args:  cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if err := a.require(ctx, tokens.RoleAny); err != nil {
				return err
			}
			bookings, err := a.client.Bookings().ForUser(ctx)
			if err != nil {
				return fmt.Errorf("failed to list bookings: %w", err)
			}
			return a.out.Render(bookings, bookingTable(bookings))
		}),
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every booking (admin)",
		Args:    cobra.NoArgs,
		RunE: o.run(func(ctx context.Context, a *app) error {
			if err := a.require(ctx, tokens.RoleAdmin); err != nil {
				return err
			}
			bookings, err := a.client.Bookings().List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list bookings: %w", err)
			}
			return a.out.Render(bookings, bookingTable(bookings))
		}),
	}

	status := &cobra.Command{
		Use:   "status <id> <PENDING|CONFIRMED|CANCELLED|COMPLETED>",
		Short: "Change the status of a booking (admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("booking", args[0])
			if err != nil {
				return err
			}
			return o.run(func(ctx context.Context, a *app) error {
				if err := a.require(ctx, tokens.RoleAdmin); err != nil {
					return err
				}
				b, err := a.client.Bookings().UpdateStatus(ctx, id, args[1])
				if err != nil {
					return fmt.Errorf("failed to update booking: %w", err)
				}
				a.out.Success("Booking %d is now %s", b.ID, b.Status)
				return nil
			})(cmd, args)
		},
	}

	cmd.AddCommand(mine, list, status)
	return cmd
}

func bookingTable(bookings []models.Booking) func() *output.Table {
	return func() *output.Table {
		t := output.NewTable("ID", "SESSION", "WHEN", "MEMBER", "STATUS", "AMOUNT")
		for _, b := range bookings {
			title, when, member := "-", "-", "-"
			if b.Session != nil {
				title = b.Session.Title
				when = b.Session.ScheduledDate.Local().Format(dateLayout)
			}
			if b.User != nil {
				member = b.User.Email
			}
			t.AddRow(b.ID, title, when, member, b.Status, money(b.Amount))
		}
		return t
	}
}
