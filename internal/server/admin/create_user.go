// Package admin implements operator commands run from the server binary,
// such as creating a user from the terminal.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/cookieauth/internal/server/models"
	"github.com/dmitrijs2005/cookieauth/internal/server/validation"
)

// UserCreator is the part of the credential store the command needs.
type UserCreator interface {
	Create(ctx context.Context, email, password string) (*models.User, error)
}

// CreateUser asks for the email (when empty) and a password twice, runs the
// signup validators and creates the user. Each password is converted to a
// string once, right after it is read; the terminal buffers are not wiped.
func CreateUser(ctx context.Context, uc UserCreator, email string, in io.Reader, w io.Writer) (*models.User, error) {
	if email == "" {
		var err error
		email, err = GetSimpleText(bufio.NewReader(in), "Email", w)
		if err != nil {
			return nil, fmt.Errorf("read email: %w", err)
		}
	}

	pw, err := readString(w, "Enter password: ")
	if err != nil {
		return nil, err
	}
	conf, err := readString(w, "Repeat password: ")
	if err != nil {
		return nil, err
	}

	payload := &validation.SignupPayload{Email: &email, Password: &pw, PasswordConfirmation: &conf}
	if err := validation.New().Validate(payload); err != nil {
		return nil, err
	}

	user, err := uc.Create(ctx, email, pw)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "User %s was successfully created (id %d)\n", user.Email, user.ID)
	return user, nil
}

func readString(w io.Writer, prompt string) (string, error) {
	b, err := GetPassword(w, prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
