package mapper

import "github.com/google/uuid"

// NewID mints a fresh identifier for navigations, realms, subscriptions
// and preload scripts. CDP loaderIds never leak through the BiDi
// surface (§4.4's open question resolution), and CDP execution context
// ids reach the client only through cdp.resolveRealm; this is the only
// place the mediator manufactures opaque ids for the client side of
// the protocol.
func NewID() string {
	return uuid.NewString()
}
