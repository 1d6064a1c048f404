package auth

import (
	"time"

	"github.com/courseloop/authd/pkg/kvstore"
)

// TimeLayout is the wall-clock format token expiries are stored in. Second
// granularity; lexicographic order matches chronological order.
const TimeLayout = "2006-01-02 15:04:05"

// Claim is the (tenant, user) identity bound to a token at issuance.
type Claim struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

// UserRecord is a directory entry keyed by (tenant_id, user_id). The digest
// never crosses an external boundary: it is excluded from JSON and stripped
// again by Sanitized before any outward-facing use.
type UserRecord struct {
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	PasswordDigest string `json:"-"`

	// Optional profile fields, present only if supplied at creation.
	Name      string `json:"name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone_number,omitempty"`
	Title     string `json:"title,omitempty"`
	Biography string `json:"biography,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Sanitized returns a copy with the credential digest removed.
func (u UserRecord) Sanitized() UserRecord {
	u.PasswordDigest = ""
	return u
}

// Claim returns the identity claim for this record.
func (u UserRecord) Claim() Claim {
	return Claim{TenantID: u.TenantID, UserID: u.UserID}
}

// userItem converts a record to its stored representation. The digest is
// stored under "password", matching the key legacy records use.
func userItem(u UserRecord) kvstore.Item {
	item := kvstore.Item{
		"tenant_id": u.TenantID,
		"user_id":   u.UserID,
		"password":  u.PasswordDigest,
	}
	optional := map[string]string{
		"name":         u.Name,
		"last_name":    u.LastName,
		"phone_number": u.Phone,
		"title":        u.Title,
		"biography":    u.Biography,
		"language":     u.Language,
	}
	for k, v := range optional {
		if v != "" {
			item[k] = v
		}
	}
	return item
}

func userFromItem(item kvstore.Item) UserRecord {
	return UserRecord{
		TenantID:       item["tenant_id"],
		UserID:         item["user_id"],
		PasswordDigest: item["password"],
		Name:           item["name"],
		LastName:       item["last_name"],
		Phone:          item["phone_number"],
		Title:          item["title"],
		Biography:      item["biography"],
		Language:       item["language"],
	}
}

// TokenRecord is a stored bearer token. The claim is fixed at issuance and
// never mutated; the expiry is checked, never extended.
type TokenRecord struct {
	Token    string
	TenantID string
	UserID   string
	Expires  string // TimeLayout, UTC
}

// ExpiresAt parses the stored expiry.
func (t TokenRecord) ExpiresAt() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, t.Expires, time.UTC)
}

func tokenItem(t TokenRecord) kvstore.Item {
	return kvstore.Item{
		"token":     t.Token,
		"tenant_id": t.TenantID,
		"user_id":   t.UserID,
		"expires":   t.Expires,
	}
}

func tokenFromItem(item kvstore.Item) TokenRecord {
	return TokenRecord{
		Token:    item["token"],
		TenantID: item["tenant_id"],
		UserID:   item["user_id"],
		Expires:  item["expires"],
	}
}
