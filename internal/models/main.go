// Package models defines the core data structures for accounts and
// workspace collections.
package models

// Account represents a registered BranchLift user.
type Account struct {
	// ID is derived from the creation timestamp in unix milliseconds.
	ID int64 `json:"id"`
	// Name is the display name entered at signup.
	Name string `json:"name"`
	// Email is unique across the account directory.
	Email string `json:"email"`
	// Password is stored and compared as plaintext.
	// TODO: hash with a salted slow hash once accounts leave the local store.
	Password string `json:"password"`
	// CreatedAt is an RFC3339 timestamp.
	CreatedAt string `json:"createdAt"`
}

// Repository is a GitHub repository tracked in a workspace.
type Repository struct {
	// ID is the GitHub repository id.
	ID int64 `json:"id"`
	// Name is the fully qualified "owner/name".
	Name string `json:"name"`
	// URL is the canonical html URL.
	URL string `json:"url"`
	// Description may be empty.
	Description string `json:"description"`
}

// Branch is a branch of a tracked repository.
type Branch struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

// EnvironmentStatus is the lifecycle state of a preview environment.
type EnvironmentStatus string

const (
	// StatusBuilding is the state of a freshly created environment.
	StatusBuilding EnvironmentStatus = "building"
	// StatusRunning is reached once the simulated build completes.
	StatusRunning EnvironmentStatus = "running"
	// StatusError is rendered by front-ends but never produced.
	StatusError EnvironmentStatus = "error"
)

// Environment is a preview environment.
type Environment struct {
	// ID is derived from the creation timestamp in unix milliseconds.
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Status    EnvironmentStatus `json:"status"`
	CreatedAt string            `json:"createdAt"`
}
