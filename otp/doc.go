// Package otp issues numeric one-time codes and stores them only as bcrypt
// hashes.
package otp
