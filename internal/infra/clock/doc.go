// Package clock abstracts time for testability.
//
// Production code injects Real(); tests inject Fake() and drive time
// forward with Advance. Token expiry and message retraction both read
// time through this package so their boundaries can be tested exactly.
package clock
