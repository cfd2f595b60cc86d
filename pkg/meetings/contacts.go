package meetings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	nterrors "github.com/otherjamesbrown/notetaker/pkg/errors"
)

// User is the owner of meetings; only the contact fields matter to the pipeline.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewUser builds a user with a fresh id.
func NewUser(email, name string) *User {
	return &User{ID: uuid.NewString(), Email: strings.TrimSpace(email), Name: name}
}

// Contact is where notifications for a meeting's owner are delivered.
type Contact struct {
	Email string
	Name  string
}

// ContactResolver resolves the owning user of a meeting to a contact address.
// It returns (nil, nil) when the meeting has no owner or the owner has no address.
type ContactResolver interface {
	Resolve(ctx context.Context, m *Meeting) (*Contact, error)
}

// StoreContactResolver resolves contacts from the users held in a Store.
type StoreContactResolver struct {
	store Store
}

// NewStoreContactResolver creates a resolver backed by store.
func NewStoreContactResolver(store Store) *StoreContactResolver {
	return &StoreContactResolver{store: store}
}

// Resolve implements ContactResolver.
func (r *StoreContactResolver) Resolve(ctx context.Context, m *Meeting) (*Contact, error) {
	if m == nil || m.UserID == "" {
		return nil, nil
	}
	u, err := r.store.GetUser(ctx, m.UserID)
	if err != nil {
		if nterrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve owner of meeting %s: %w", m.ID, err)
	}
	if u.Email == "" {
		return nil, nil
	}
	name := u.Name
	if name == "" {
		name = u.Email
	}
	return &Contact{Email: u.Email, Name: name}, nil
}
