package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accountkeeper/internal/client/client"
	"github.com/dmitrijs2005/accountkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// askEmail falls back to the email of the current session or recovery flow
// when the answer is empty.
func (a *App) askEmail() (string, error) {
	prompt := "Enter email"
	if a.email != "" {
		prompt = fmt.Sprintf("Enter email [%s]", a.email)
	}
	email, err := a.ask(prompt)
	if err != nil {
		return "", err
	}
	if email == "" {
		email = a.email
	}
	if email == "" {
		return "", errors.New("email is required")
	}
	return email, nil
}

func (a *App) report(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintln(a.out, "Error:", apiErr.Error())
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}

func (a *App) Register(ctx context.Context) error {
	first, err := a.ask("Enter first name")
	if err != nil {
		return err
	}
	last, err := a.ask("Enter last name")
	if err != nil {
		return err
	}
	email, err := a.ask("Enter email")
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.Register(ctx, client.Registration{
		FirstName:    first,
		LastName:     last,
		PrimaryEmail: email,
		Password:     string(password),
	})
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "Account created: %s (%s)\n", user.PrimaryEmail, user.ID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.askEmail()
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	token, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return a.report(err)
	}

	a.token, a.email = token, email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(context.Context) error {
	a.token = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// Recover starts password recovery and remembers the email for the next steps.
func (a *App) Recover(ctx context.Context) error {
	email, err := a.askEmail()
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.RecoverInitiate(ctx, email)
	if err != nil {
		return a.report(err)
	}
	a.email = email
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Resend(ctx context.Context) error {
	email, err := a.askEmail()
	if err != nil {
		return a.report(err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.RecoverResend(ctx, email)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Verify(ctx context.Context) error {
	email, err := a.askEmail()
	if err != nil {
		return a.report(err)
	}
	code, err := a.ask("Enter OTP code")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.VerifyOTP(ctx, email, code)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Complete(ctx context.Context) error {
	email, err := a.askEmail()
	if err != nil {
		return a.report(err)
	}
	password, err := getPassword("Enter new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword("Confirm new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return a.report(errors.New("passwords do not match"))
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.CompleteRecovery(ctx, email, string(password))
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

// Me shows the account behind the session token. A rejected token ends the
// session.
func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.Me(ctx, a.token)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNotFound) {
			a.token = ""
		}
		return a.report(err)
	}

	fmt.Fprintf(a.out, "%s %s <%s>\n  id: %s\n  verified: %t\n  admin: %t\n",
		user.FirstName, user.LastName, user.PrimaryEmail, user.ID, user.EmailVerified, user.IsAdmin)
	return nil
}

func (a *App) Upload(ctx context.Context, path string) error {
	if path == "" {
		p, err := a.ask("Enter file path")
		if err != nil {
			return err
		}
		path = p
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	url, err := a.client.Upload(ctx, a.token, path)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Uploaded:", url)
	return nil
}
