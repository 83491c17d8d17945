package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateTitle validates an issue title.
func ValidateTitle(title string) error {
	if len(title) == 0 {
		return errors.New("title cannot be empty")
	}
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateDescription validates an issue description.
func ValidateDescription(desc string) error {
	if len(desc) == 0 {
		return errors.New("description cannot be empty")
	}
	if len(desc) > 100000 { // ~100KB limit
		return errors.New("description exceeds maximum length")
	}
	if !utf8.ValidString(desc) {
		return errors.New("description must be valid UTF-8")
	}
	return nil
}

// ValidateMessageBody validates a conversation message body.
func ValidateMessageBody(body string) error {
	if len(body) == 0 {
		return errors.New("body cannot be empty")
	}
	if len(body) > 100000 {
		return errors.New("body exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("body must be valid UTF-8")
	}
	return nil
}

// ValidateCustomerID validates a customer identifier.
func ValidateCustomerID(id string) error {
	if len(id) == 0 {
		return errors.New("customer ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("customer ID exceeds maximum length")
	}
	return nil
}
