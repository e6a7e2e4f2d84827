package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"land-marketplace/internal/app"
	"land-marketplace/internal/common/errors"
	"land-marketplace/internal/common/validation"
	"land-marketplace/internal/enquiry"
	"land-marketplace/internal/listings"
	"land-marketplace/internal/models"
)

// run dispatches one subcommand against a built application.
func run(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		help(out)
		return nil
	}

	switch args[0] {
	case "browse":
		return browse(ctx, a, args[1:], out)
	case "show":
		return show(ctx, a, args[1:], out)
	case "login":
		return login(ctx, a, args[1:], out)
	case "logout":
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out.")
		return nil
	case "signup":
		return signup(ctx, a, args[1:], out)
	case "passwd":
		return passwd(ctx, a, args[1:], out)
	case "whoami":
		return whoami(a, out)
	case "enquire":
		return enquire(ctx, a, args[1:], out)
	case "enquiries":
		return enquiries(ctx, a, out)
	case "cancel-enquiry":
		return cancelEnquiry(ctx, a, args[1:], out)
	case "help":
		help(out)
		return nil
	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func browse(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("browse", out)
	propertyType := fs.String("type", "all", "Property type (all, farm, land, commercial, residential)")
	search := fs.String("search", "", "Free-text search")
	location := fs.String("location", "", "Location filter")
	minPrice := fs.Int64("min-price", -1, "Minimum price in rupees")
	maxPrice := fs.Int64("max-price", -1, "Maximum price in rupees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := a.Browse.Apply(ctx, listings.QueryFilter{
		ActiveType: models.PropertyType(strings.ToLower(*propertyType)),
		SearchText: *search,
		Location:   *location,
		MinPrice:   optionalPrice(*minPrice),
		MaxPrice:   optionalPrice(*maxPrice),
	})
	if err != nil {
		return err
	}
	if st.Status == listings.StatusFailed {
		return fmt.Errorf("%s", st.Error)
	}
	if len(st.Results) == 0 {
		fmt.Fprintln(out, "No properties match your filters.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tLOCATION\tSIZE\tPRICE")
	for i := range st.Results {
		l := &st.Results[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", l.ID, l.Title, l.PropertyType, l.Location, l.SizeLabel(), l.PriceLabel())
	}
	return w.Flush()
}

func optionalPrice(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}

func show(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("show", out)
	id := fs.String("id", "", "Listing ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	l, err := a.Listings.Get(ctx, models.ID(*id))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", l.Title)
	fmt.Fprintf(out, "  Type:      %s\n", l.PropertyType)
	fmt.Fprintf(out, "  Location:  %s\n", l.Location)
	if size := l.SizeLabel(); size != "" {
		fmt.Fprintf(out, "  Size:      %s\n", size)
	}
	fmt.Fprintf(out, "  Price:     %s\n", l.PriceLabel())
	if l.Description != "" {
		fmt.Fprintf(out, "  About:     %s\n", l.Description)
	}
	if l.HasCoordinates() {
		fmt.Fprintf(out, "  Directions: %s\n", l.DirectionsURL())
	}
	return nil
}

func login(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("login", out)
	identifier := fs.String("identifier", "", "Username or email")
	password := fs.String("password", "", "Password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := a.Session.Login(ctx, *identifier, *password)
	if err != nil && !errors.HasCode(err, errors.ErrCodeSessionPersistence) {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s.\n", a.Session.User().DisplayName())
	if err != nil {
		fmt.Fprintln(out, "Warning: the session could not be saved and will end with this command.")
	}
	return nil
}

func signup(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("signup", out)
	req := models.SignupRequest{}
	fs.StringVar(&req.Username, "username", "", "Username")
	fs.StringVar(&req.FullName, "name", "", "Full name")
	fs.StringVar(&req.Email, "email", "", "Email")
	fs.StringVar(&req.Phone, "phone", "", "10-digit phone number")
	fs.StringVar(&req.Password, "password", "", "Password (at least 6 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.Session.Signup(ctx, req); err != nil {
		return err
	}
	fmt.Fprintln(out, "Account created. You can now log in.")
	return nil
}

func passwd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("passwd", out)
	oldPassword := fs.String("old", "", "Current password")
	newPassword := fs.String("new", "", "New password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.Session.ChangePassword(ctx, *oldPassword, *newPassword); err != nil {
		return err
	}
	fmt.Fprintln(out, "Password changed.")
	return nil
}

func whoami(a *app.App, out io.Writer) error {
	snap := a.Session.Snapshot()
	if !snap.Authenticated {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	role := "user"
	if snap.Admin {
		role = "admin"
	}
	fmt.Fprintf(out, "%s (%s)\n", snap.User.DisplayName(), role)
	if snap.User.Email != "" {
		fmt.Fprintf(out, "  Email: %s\n", snap.User.Email)
	}
	if snap.User.Phone != "" {
		fmt.Fprintf(out, "  Phone: %s\n", snap.User.Phone)
	}
	return nil
}

func enquire(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("enquire", out)
	land := fs.String("land", "", "Listing ID")
	phone := fs.String("phone", "", "Contact phone (10 digits)")
	name := fs.String("name", "", "Contact name (logged-in users)")
	email := fs.String("email", "", "Contact email (logged-in users)")
	message := fs.String("message", "", "Message to the seller (logged-in users)")
	budget := fs.Int64("budget", -1, "Budget in rupees (logged-in users)")
	contactTime := fs.String("contact-time", "", "Preferred contact time (logged-in users)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := checkContactFlags(*phone, *email); err != nil {
		return err
	}

	snap, err := a.Enquiry.Begin(models.ID(*land))
	if err != nil {
		return err
	}

	switch snap.State {
	case enquiry.StateCapturingGuest:
		snap, err = a.Enquiry.SubmitGuest(ctx, *phone)
	case enquiry.StateCapturingFull:
		form := enquiry.FullForm{
			ContactName:  firstNonEmpty(*name, snap.Intent.ContactName),
			ContactPhone: firstNonEmpty(*phone, snap.Intent.ContactPhone),
			ContactEmail: firstNonEmpty(*email, snap.Intent.ContactEmail),
			Message:      *message,
			Budget:       optionalPrice(*budget),
			ContactTime:  *contactTime,
		}
		snap, err = a.Enquiry.SubmitFull(ctx, form)
	}
	if err != nil {
		return err
	}

	switch snap.State {
	case enquiry.StateSubmitted:
		fmt.Fprintln(out, "Enquiry submitted. The seller will contact you shortly.")
	case enquiry.StateAlreadySubmitted:
		fmt.Fprintln(out, "You have already enquired about this property.")
	default:
		a.Enquiry.Cancel()
		return fmt.Errorf("%s", snap.Error)
	}
	return nil
}

// checkContactFlags rejects malformed -phone or -email values before a flow starts.
func checkContactFlags(phone, email string) error {
	fields := map[string]string{}
	if p := strings.TrimSpace(phone); p != "" && !validation.ValidatePhone(p) {
		fields["contact_phone"] = "Enter a valid 10-digit phone number"
	}
	if e := strings.TrimSpace(email); e != "" && !validation.ValidateEmail(e) {
		fields["contact_email"] = "Enter a valid email address"
	}
	if len(fields) == 0 {
		return nil
	}
	return errors.NewValidationError("Check your contact details", fields)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func enquiries(ctx context.Context, a *app.App, out io.Writer) error {
	list, err := a.Enquiries.Mine(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "You have not made any enquiries yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROPERTY\tSTATUS\tCREATED")
	for i := range list {
		e := &list[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Title(), e.Status, e.CreatedAt)
	}
	return w.Flush()
}

func cancelEnquiry(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("cancel-enquiry", out)
	id := fs.String("id", "", "Enquiry ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.Enquiries.Cancel(ctx, models.ID(*id)); err != nil {
		return err
	}
	fmt.Fprintln(out, "Enquiry cancelled.")
	return nil
}

// describe renders err for the terminal: the user-facing message, plus field
// details for validation failures.
func describe(err error) string {
	stdErr := errors.Normalize(err)
	if stdErr.Code == errors.ErrCodeInternal {
		return err.Error()
	}
	if stdErr.Code == errors.ErrCodeValidationFailed && stdErr.Details != "" {
		return stdErr.Message + " (" + stdErr.Details + ")"
	}
	return errors.UserMessage(err)
}

func help(out io.Writer) {
	fmt.Fprintln(out, `Usage: landctl <command> [flags]

Commands:
  browse          List properties (-type -search -location -min-price -max-price)
  show            Show one property (-id)
  login           Log in (-identifier -password)
  logout          Log out
  signup          Create an account (-username -name -email -phone -password)
  passwd          Change password (-old -new)
  whoami          Show the logged-in user
  enquire         Contact the seller about a property (-land, -phone or -name -email -message -budget -contact-time)
  enquiries       List your enquiries
  cancel-enquiry  Cancel a pending enquiry (-id)
  help            Show this help`)
}
