package models

import "time"

// Profile is the public part of a user document. It never carries credentials
// or moderation fields, so it is safe to cache.
type Profile struct {
	ID         string    `bson:"_id" json:"_id"`
	FullName   string    `bson:"full_name" json:"fullName"`
	Email      string    `bson:"email" json:"email"`
	ProfilePic string    `bson:"profile_pic" json:"profilePic"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// User is a chat account. Moderation fields live on the same document and are
// only ever written through targeted $set updates.
type User struct {
	Profile         `bson:",inline"`
	ModerationState `bson:",inline"`

	PasswordHash   string    `bson:"password" json:"-"`
	SessionVersion int       `bson:"session_version" json:"-"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// Validate returns a field -> message map, empty when the request is valid.
func (r *SignupRequest) Validate() map[string]string {
	errs := make(map[string]string)

	if r.FullName == "" {
		errs["fullName"] = "Full name is required"
	}
	if r.Email == "" {
		errs["email"] = "Email is required"
	}
	if r.Password == "" {
		errs["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errs["password"] = "Password must be at least 6 characters"
	}

	return errs
}

func (r *LoginRequest) Validate() map[string]string {
	errs := make(map[string]string)

	if r.Email == "" {
		errs["email"] = "Email is required"
	}
	if r.Password == "" {
		errs["password"] = "Password is required"
	}

	return errs
}
