package authctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/newsplatform/sessiond/internal/common"
	"github.com/newsplatform/sessiond/internal/server/models"
	"github.com/newsplatform/sessiond/internal/server/password"
)

// Login prompts for credentials, authenticates them and prints the issued
// token pair.
func (a *App) Login(ctx context.Context) error {
	login, err := GetSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	res, err := a.auth.Login(ctx, login, string(pw), "", "authctl")
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return errors.New("invalid credentials")
		}
		if errors.Is(err, common.ErrAccountDisabled) {
			return errors.New("account is disabled")
		}
		return err
	}

	fmt.Fprintf(a.out, "user:          %s (%s)\n", res.User.Username, res.User.Role)
	fmt.Fprintf(a.out, "access token:  %s\n", res.AccessToken.TokenValue)
	fmt.Fprintf(a.out, "  expires at:  %s\n", res.AccessToken.ExpiresAt)
	fmt.Fprintf(a.out, "refresh token: %s\n", res.RefreshToken.TokenValue)
	fmt.Fprintf(a.out, "  expires at:  %s\n", res.RefreshToken.ExpiresAt)
	return nil
}

// Validate checks the presented access token and prints the verdict.
func (a *App) Validate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: validate <access-token>")
	}

	info, err := a.tokens.ValidateAccessToken(ctx, args[0])
	if err != nil {
		return err
	}
	if info == nil {
		fmt.Fprintln(a.out, "invalid")
		return nil
	}

	fmt.Fprintf(a.out, "valid: user %s (%s), expires %s\n", info.User.Username, info.User.Role, info.ExpiresAt)
	return nil
}

// Revoke revokes every token the user holds.
func (a *App) Revoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: revoke <user-id>")
	}

	n, err := a.tokens.RevokeAll(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "revoked %d tokens\n", n)
	return nil
}

// Sweep runs one retention sweep.
func (a *App) Sweep(ctx context.Context) error {
	n, err := a.cleanup.SweepExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d rows\n", n)
	return nil
}

// Reconcile runs one full duplicate reconciliation pass.
func (a *App) Reconcile(ctx context.Context) error {
	n, err := a.cleanup.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "removed %d duplicate rows\n", n)
	return nil
}

// AddUser creates an account, prompting for its password.
func (a *App) AddUser(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: adduser <username> <email> <role>")
	}

	role := models.Role(args[2])
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", args[2])
	}

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	hash, err := password.Hash(string(pw))
	if err != nil {
		return err
	}

	user, err := a.repos.Users(a.db).Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Username:     args[0],
		Email:        args[1],
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "created user %s\n", user.ID)
	return nil
}
