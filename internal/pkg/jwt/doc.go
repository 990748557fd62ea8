// Package jwt is helpers for working with JSON Web Tokens (JWT).
//
// Tokens identify a user and the login session they belong to. The factor
// engine binds challenges to that session id, so a token without one is
// rejected at verification.
package jwt
