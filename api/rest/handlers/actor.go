package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"simunet-portal/core/models"
)

// ActorHeader names the request header carrying the caller identity.
// Session management lives upstream; by the time a request reaches the
// portal the identity is expected to be resolved and trustworthy.
const ActorHeader = "X-Portal-User"

var errUnknownActor = errors.New("unknown actor")

// ActorResolver maps request identities onto configured user profiles.
type ActorResolver struct {
	users map[string]*models.UserProfile
}

// NewActorResolver creates a resolver over the user directory.
func NewActorResolver(users map[string]*models.UserProfile) *ActorResolver {
	return &ActorResolver{users: users}
}

// Resolve returns the profile for the request's actor header.
func (r *ActorResolver) Resolve(req *http.Request) (*models.UserProfile, error) {
	id := req.Header.Get(ActorHeader)
	if id == "" {
		return nil, fmt.Errorf("%w: missing %s header", errUnknownActor, ActorHeader)
	}
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownActor, id)
	}
	return user, nil
}
