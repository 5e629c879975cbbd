package driven

import "context"

// RepoFile is one file to be committed through the repository contents API.
type RepoFile struct {
	Repo    string // "owner/name"
	Path    string // path inside the repository
	Message string // commit message
	Content []byte
}

// RepoExporter writes generated media to a remote repository.
type RepoExporter interface {
	// PutFile creates the file in the repository using token for auth.
	PutFile(ctx context.Context, token string, file RepoFile) error

	// ValidateToken verifies that token is usable and returns the
	// authenticated login.
	ValidateToken(ctx context.Context, token string) (login string, err error)
}
