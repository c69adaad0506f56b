// Package session resolves the authenticated Identity and owns its
// lifecycle for the whole process.
//
// Resolver performs the single "who am I" request. Session is the context
// object other components receive instead of reading storage themselves:
// Init publishes the Identity, Logout clears it, and OnSignInRequired is
// the redirect-to-sign-in signal fired whenever the credential is lost.
package session
