package models

import (
	"strings"

	"volunteer-hub/internal/docstore"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleParent Role = "parent"
)

// ParseRole maps anything but "admin" (any case) to parent.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleParent
}

type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// DisplayName is the name shown in rosters and exports.
func (p UserProfile) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return "Unnamed"
	}
	return p.Name
}

func ProfileFromDocument(doc docstore.Document) (UserProfile, error) {
	r := newFieldReader(doc.Path, doc.Fields)
	p := UserProfile{
		ID:    doc.ID,
		Name:  r.string(FieldName, false),
		Email: r.string(FieldEmail, false),
		Role:  ParseRole(r.string(FieldRole, false)),
	}
	if err := r.check(p); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

func (p UserProfile) Fields() docstore.Fields {
	return docstore.Fields{
		FieldName:  p.Name,
		FieldEmail: p.Email,
		FieldRole:  string(p.Role),
	}
}
