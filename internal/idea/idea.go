// Package idea defines the venture idea and its bound repository. An idea's
// identity is immutable once created; its display name is cosmetic.
package idea

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagecraft/stagecraft/internal/stage"
)

// Repository identifies the versioned store container bound 1:1 to an idea.
type Repository struct {
	// Owner is the account or organization the repository lives under.
	Owner string `yaml:"owner"`
	// Name is the repository name.
	Name string `yaml:"name"`
	// Branches lists the known stage branches.
	Branches []string `yaml:"branches,omitempty"`
}

// Address returns the "owner/name" form used in logs and store calls.
func (r Repository) Address() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// ParseRepository parses an "owner/name" address.
func ParseRepository(address string) (Repository, error) {
	owner, name, ok := strings.Cut(address, "/")
	if !ok || owner == "" || name == "" {
		return Repository{}, fmt.Errorf("repository address %q is not owner/name", address)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// Idea is one venture under exploration.
type Idea struct {
	// ID uniquely identifies the idea. Immutable.
	ID string `yaml:"id"`
	// Name is the display name. Cosmetic; may change.
	Name string `yaml:"name"`
	// Description is the founder's free-text pitch.
	Description string `yaml:"description,omitempty"`
	// Repo is the bound repository.
	Repo Repository `yaml:"repo"`
	// CurrentStage is derived from branch state by the engine; stored here
	// only as a display hint.
	CurrentStage stage.Stage `yaml:"-"`
	// CreatedAt is when the idea was created.
	CreatedAt time.Time `yaml:"created_at"`
}

// New creates an Idea with a fresh identity bound to repo.
func New(name, description string, repo Repository) *Idea {
	return &Idea{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Repo:        repo,
		CreatedAt:   time.Now().UTC(),
	}
}
