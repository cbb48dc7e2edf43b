package pairstore

import (
	"fmt"

	"github.com/openmined/davsync/internal/utils"
	"go.etcd.io/bbolt"
)

var credentialsKey = []byte("current")

// Credentials are the endpoint settings saved by the login command.
type Credentials struct {
	ServerURL string `json:"server_url"`
	Login     string `json:"login"`
	Password  string `json:"password"`
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s (password %s)", c.Login, c.ServerURL, utils.MaskSecret(c.Password))
}

func (s *Store) SaveCredentials(c Credentials) error {
	data, err := utils.JSONMarshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuth).Put(credentialsKey, data)
	})
}

// Credentials returns ErrCredentialsMissing when login never ran.
func (s *Store) Credentials() (Credentials, error) {
	var c Credentials
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAuth).Get(credentialsKey)
		if data == nil {
			return ErrCredentialsMissing
		}
		if err := utils.JSONUnmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
		return nil
	})
	return c, err
}

func (s *Store) DeleteCredentials() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuth).Delete(credentialsKey)
	})
}
