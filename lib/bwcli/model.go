// Copyright 2026 The VaultFS Authors
// SPDX-License-Identifier: Apache-2.0

package bwcli

import "time"

// Status is the decoded output of "bw status".
type Status struct {
	ServerURL *string    `json:"serverUrl"`
	LastSync  *time.Time `json:"lastSync"`
	UserEmail string     `json:"userEmail"`
	UserID    string     `json:"userId"`

	// Status is "unlocked", "locked", or "unauthenticated".
	Status string `json:"status"`
}

// Locked reports whether the vault can serve item listings. Anything
// other than an explicit "unlocked" counts as locked, including
// "unauthenticated".
func (s Status) Locked() bool {
	return s.Status != "unlocked"
}

// Folder is one element of "bw list folders". The synthetic
// "No Folder" entry has a nil ID.
type Folder struct {
	Object string  `json:"object"`
	ID     *string `json:"id"`
	Name   string  `json:"name"`
}

// ItemType is the numeric Bitwarden item type.
type ItemType int

const (
	TypeLogin      ItemType = 1
	TypeCard       ItemType = 2
	TypeIdentity   ItemType = 3
	TypeSecureNote ItemType = 4
)

// String returns the human-readable type name, matching the labels
// the Bitwarden apps use.
func (t ItemType) String() string {
	switch t {
	case TypeLogin:
		return "Login"
	case TypeCard:
		return "Card"
	case TypeIdentity:
		return "Identity"
	case TypeSecureNote:
		return "Secure note"
	default:
		return "Unknown"
	}
}

// Item is one element of "bw list items".
type Item struct {
	Object         string     `json:"object"`
	ID             string     `json:"id"`
	OrganizationID *string    `json:"organizationId"`
	FolderID       *string    `json:"folderId"`
	Type           ItemType   `json:"type"`
	Reprompt       int        `json:"reprompt"`
	Name           string     `json:"name"`
	Notes          *string    `json:"notes"`
	Favorite       bool       `json:"favorite"`
	Login          *Login     `json:"login"`
	Fields         []Field    `json:"fields"`
	RevisionDate   time.Time  `json:"revisionDate"`
	CreationDate   time.Time  `json:"creationDate"`
	DeletedDate    *time.Time `json:"deletedDate"`
}

// Login is the credential block of a login item.
type Login struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	TOTP     *string `json:"totp"`
	URIs     []URI   `json:"uris"`
}

// URI is one login URI.
type URI struct {
	Match *int   `json:"match"`
	URI   string `json:"uri"`
}

// Field is one custom field on an item.
type Field struct {
	Name  string    `json:"name"`
	Value string    `json:"value"`
	Type  FieldType `json:"type"`
}

// FieldType is the numeric Bitwarden custom-field type.
type FieldType int

const (
	FieldText    FieldType = 0
	FieldHidden  FieldType = 1
	FieldBoolean FieldType = 2
	FieldLinked  FieldType = 3
)
