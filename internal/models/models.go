package models

import "encoding/json"

// UserProfile is the user record as the remote user service returns it.
type UserProfile struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Username  string `json:"username"`
}

// UnmarshalJSON accepts the identifier either as "id" or as the
// document-store style "_id".
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = UserProfile(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

type Registration struct {
	FirstName     string `json:"firstName" label:"First Name" validate:"required,min=3,max=10"`
	LastName      string `json:"lastName" label:"Last Name" validate:"required,min=3,max=7"`
	Email         string `json:"email" label:"Email" validate:"required,email"`
	Phone         string `json:"phone" label:"Phone Number" validate:"required,digits10"`
	Username      string `json:"username" label:"Username" validate:"required"`
	AcceptedTerms bool   `json:"acceptedTerms" label:"Terms" validate:"accepted"`
}

type ProfileDraft struct {
	FirstName string `json:"firstName" label:"First Name" validate:"required,min=3,max=10"`
	LastName  string `json:"lastName" label:"Last Name" validate:"required,min=3,max=7"`
	Phone     string `json:"phone" label:"Phone Number" validate:"required,digits10"`
}

// DraftOf copies the editable fields of the profile.
func DraftOf(u UserProfile) ProfileDraft {
	return ProfileDraft{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
}

// FieldErrors maps a field's JSON name to a human-readable message.
type FieldErrors map[string]string

type ProfileMode string

const (
	ModeView ProfileMode = "view"
	ModeEdit ProfileMode = "edit"
)

type CreateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Username  string `json:"username"`
}

type CreateUserResponse struct {
	Exists bool         `json:"exists"`
	Msg    string       `json:"msg,omitempty"`
	Data   *UserProfile `json:"data,omitempty"`
}

type UpdateUserRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type UpdateUserResponse struct {
	Data *UserProfile `json:"data"`
}

type ValidateRequest struct {
	Fields []string     `json:"fields"`
	Values Registration `json:"values"`
}

type ValidateResponse struct {
	Valid  bool        `json:"valid"`
	Errors FieldErrors `json:"errors,omitempty"`
}
