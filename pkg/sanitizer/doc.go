// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent. Invalid input is reduced to an empty string
// rather than returning an error, so the validator reports it as missing.
//
// Normalization includes:
//   - Text: collapse whitespace, trim leading and trailing spaces
//   - Location codes: upper-case, letters and digits only
//   - Reference numbers: upper-case, keep the PREFIX-HEX shape
//   - Slices: remove duplicates and empty values after normalization
package sanitizer
