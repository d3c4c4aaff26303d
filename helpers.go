package protect

import (
	"context"
	"fmt"
)

// EncryptString encrypts a string value immediately (no further chaining).
func (c *Client) EncryptString(ctx context.Context, s string, col Column) (*Encrypted, error) {
	return c.Encrypt(s, col).Execute(ctx)
}

// EncryptStringPtr encrypts a string pointer.
// Returns nil if s is nil (NULL preservation), without an engine call.
func (c *Client) EncryptStringPtr(ctx context.Context, s *string, col Column) (*Encrypted, error) {
	if s == nil {
		return nil, nil
	}
	return c.EncryptString(ctx, *s, col)
}

// DecryptString decrypts a record to a string value.
// Returns empty string and ErrWasNull if the record is nil.
func (c *Client) DecryptString(ctx context.Context, record *Encrypted) (string, error) {
	if record == nil {
		return "", ErrWasNull
	}
	value, err := c.Decrypt(record).Execute(ctx)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("protect: decrypted value is %T, not string", value)
	}
	return s, nil
}

// DecryptStringPtr decrypts a record to a string pointer.
// Returns nil if the record is nil (NULL preservation).
func (c *Client) DecryptStringPtr(ctx context.Context, record *Encrypted) (*string, error) {
	if record == nil {
		return nil, nil
	}
	s, err := c.DecryptString(ctx, record)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
