package secret

import (
	"fmt"
	"os"
)

// PasswordEnv overrides the storage password for every key.
const PasswordEnv = "SLIDES_DB_PASSWORD"

// EnvStore reads secrets from the environment. Every key maps to the same
// variable, so it is meant to sit first in a Chain.
type EnvStore struct {
	Var string
}

func NewEnvStore() *EnvStore {
	return &EnvStore{Var: PasswordEnv}
}

func (e *EnvStore) Get(string) ([]byte, error) {
	v := os.Getenv(e.Var)
	if v == "" {
		return nil, nil
	}
	return []byte(v), nil
}

func (e *EnvStore) Set(string, []byte) error {
	return fmt.Errorf("env secret store is read-only (set %s instead)", e.Var)
}

func (e *EnvStore) Delete(string) error { return nil }
