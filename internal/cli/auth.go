package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mcoot/arena-auth/internal/forms"
	"github.com/mcoot/arena-auth/internal/model"
)

// errNotSignedIn is returned when the backend accepted the credentials but
// the session could not be turned into an identity
var errNotSignedIn = errors.New("signed in to the backend but the profile could not be loaded")

func newSignInCmd(e *env) *cobra.Command {
	var form forms.SignInForm

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if errs := forms.SubmitSignIn(ctx, form, app.Session.SignIn); errs != nil {
				return errs
			}

			identity := app.Session.Current()
			if identity == nil {
				return errNotSignedIn
			}
			e.out.Print(NewWhoAmIResult(identity))
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&form.Password, "password", "", "Account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newSignUpCmd(e *env) *cobra.Command {
	var form forms.SignUpForm

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in to it",
		Long: `Create an account, wait for its profile to be provisioned and sign in.

--confirm-password defaults to --password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("confirm-password") {
				form.ConfirmPassword = form.Password
			}

			ctx := cmd.Context()
			app, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			var signInErr error
			errs := forms.SubmitSignUp(ctx, form, func(ctx context.Context, req model.SignUpRequest) error {
				res, err := app.Session.SignUp(ctx, req)
				signInErr = res.Err
				return err
			})
			if errs != nil {
				return errs
			}
			// The account exists from here on; only the sign-in can still fail
			if errs := forms.SignInErrors(signInErr); errs != nil {
				return errs
			}

			identity := app.Session.Current()
			if identity == nil {
				return errNotSignedIn
			}
			e.out.Print(NewWhoAmIResult(identity))
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "Account email (required)")
	cmd.Flags().StringVar(&form.Username, "username", "", "Public username (required)")
	cmd.Flags().StringVar(&form.FullName, "full-name", "", "Full name (required)")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (required)")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "Password again")
	for _, name := range []string{"email", "username", "full-name", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if app.Session.Current() == nil {
				e.out.PrintMessage("Not signed in")
				return nil
			}
			if err := app.Session.Logout(ctx); err != nil {
				return err
			}
			e.out.PrintMessage("Signed out")
			return nil
		},
	}
}

func newWhoAmICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			e.out.Print(NewWhoAmIResult(app.Session.Current()))
			return nil
		},
	}
}
