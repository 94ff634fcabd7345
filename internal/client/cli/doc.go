// Package cli provides accountctl, an interactive client for the account
// backend.
//
// The REPL drives the whole account lifecycle: register, login, the
// recover / resend / verify / complete password recovery steps, "me" to
// check the session token, and upload to push an image. Passwords are read
// from the terminal without echo.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
