// Package validator provides a small validation abstraction for request and
// domain structs.
//
// Besides the stock go-playground/validator v10 tags it registers "base32"
// for authenticator keys and "workflow" for challenge workflow keys.
// Failures come back as V10ValidationError keyed by snake_case field name.
package validator
