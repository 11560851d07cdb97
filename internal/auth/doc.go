// Package auth provides authentication and authorisation for GeoControl Core.
//
// It implements a three-role model (viewer, operator, admin) with:
//   - Argon2id password hashing
//   - HS256 JWT access tokens carrying the user's role
//   - A static role-permission table checked by the HTTP middleware
//
// The topology and measurement packages never see tokens or users; the
// permission check happens entirely at the HTTP boundary.
package auth
