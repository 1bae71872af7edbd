// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result.
// Invalid input is never an error; it is normalized away.
//
// Normalization includes:
//   - Whitespace: trim, collapse runs of spaces/tabs/newlines into one space
//   - Control characters: removed
//   - Notes (special requests, cancellation reasons): the above, then clamped
//     to a maximum rune length
package sanitizer
