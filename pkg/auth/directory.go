package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courseloop/authd/pkg/kvstore"
)

// Directory owns user records in the external key-value store. Records are
// keyed by (tenant_id, user_id); the directory is the only writer of the
// users table.
type Directory struct {
	store kvstore.Store
}

// NewDirectory creates a directory over the given store.
func NewDirectory(store kvstore.Store) *Directory {
	return &Directory{store: store}
}

// keyEscape makes a key component safe to join with "#". The delimiter and
// the escape character are both escaped, so no two (tenant, user) pairs can
// ever collapse into one composite key.
func keyEscape(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "#", "%23")
}

// UserKey builds the composite storage key for a user. Components are
// escaped individually; a "#" inside either ID stays inside that ID.
func UserKey(tenantID, userID string) string {
	return keyEscape(tenantID) + "#" + keyEscape(userID)
}

// Create durably writes the record. Upsert semantics: an existing record
// under the same key is silently overwritten, last-writer-wins. Concurrent
// duplicate registrations therefore race; the domain accepts that and does
// not serialize them.
func (d *Directory) Create(ctx context.Context, rec UserRecord) error {
	if err := d.store.Put(ctx, kvstore.TableUsers, UserKey(rec.TenantID, rec.UserID), userItem(rec)); err != nil {
		return fmt.Errorf("user write failed: %w", err)
	}
	return nil
}

// Find returns the record for (tenant, user), or ErrUserNotFound. Backend
// failures surface as wrapped storage errors without further classification.
func (d *Directory) Find(ctx context.Context, tenantID, userID string) (UserRecord, error) {
	item, err := d.store.Get(ctx, kvstore.TableUsers, UserKey(tenantID, userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("user lookup failed: %w", err)
	}
	return userFromItem(item), nil
}
