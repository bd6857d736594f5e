package store

import "context"

type Credential struct {
	CredentialID int64
	AccessKeyID  string
	Description  string
	// Encrypted secret access key. Never serialized to clients.
	SecretAccessKeyHash string `json:"-"`

	SecretAccessKey []byte `json:"-"`
}

type CredentialStore interface {
	CreateCredential(context.Context, string, string, string) (*Credential, error)
	ReadCredentialByID(context.Context, int64) (*Credential, error)
	UpdateCredential(context.Context, int64, string, string) error
	DeleteCredential(context.Context, int64) error
	ListCredentials(context.Context) ([]*Credential, error)
}
